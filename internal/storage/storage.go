// Package storage is the blob layer: staged uploads under tmp/, permanent
// object keys, and presigned client access. MinIO backs it in production; an
// in-memory store backs tests.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StagedPrefix is the namespace clients upload into before an entity claims
// the file. Objects under it are disposable.
const StagedPrefix = "tmp/"

type BlobStore interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// StagedKey returns a fresh upload key under the staged namespace.
func StagedKey(ext string) string {
	return StagedPrefix + uuid.NewString() + normalizeExt(ext)
}

// PermanentKey returns the durable key for a file owned by a sub-resource:
// {parentID}/{entityID}/{subResourceID}/{uuid}{ext}.
func PermanentKey(parentID, entityID, subResourceID, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s%s", parentID, entityID, subResourceID, uuid.NewString(), normalizeExt(ext))
}

// IsStaged reports whether key lives in the staged namespace.
func IsStaged(key string) bool {
	return strings.HasPrefix(key, StagedPrefix)
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
