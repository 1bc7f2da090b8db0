// Package storage uploads captured images and issues time-limited read URLs for them.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ObjectStorage is the object-storage collaborator used by the upload resolver.
type ObjectStorage interface {
	// Upload stores data under key and returns the object's permanent location.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// SignedURL returns a read-only URL for key that expires after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectKey names an upload "<owner>/<unix-millis>.<ext>".
func ObjectKey(owner string, at time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d.%s", owner, at.UnixMilli(), ext)
}

// ExtensionFor maps an image MIME type onto a file extension.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/heic":
		return "heic"
	default:
		return "bin"
	}
}
