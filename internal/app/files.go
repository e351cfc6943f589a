package app

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
)

const presignTTL = 15 * time.Minute

// PresignUpload hands out a staged key and a presigned PUT URL. The object
// stays under tmp/ until an operation claims it.
func (s *Service) PresignUpload(ctx context.Context, sess Session, fileName string) (map[string]any, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return nil, forbidden("You cannot upload files")
	}

	key := storage.StagedKey(path.Ext(fileName))
	url, err := s.blobs.PresignPut(ctx, key, presignTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"key":       key,
		"uploadUrl": url,
		"expiresIn": int(presignTTL.Seconds()),
	}, nil
}

// PresignDownload returns a presigned GET URL for an existing object.
func (s *Service) PresignDownload(ctx context.Context, sess Session, key string) (map[string]any, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot download files")
	}

	ok, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "File not found", nil)
	}
	url, err := s.blobs.PresignGet(ctx, key, presignTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"key":         key,
		"downloadUrl": url,
		"expiresIn":   int(presignTTL.Seconds()),
	}, nil
}
