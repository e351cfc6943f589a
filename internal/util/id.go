package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier such as "led_9f2c...". An empty prefix
// yields the bare hex form.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
