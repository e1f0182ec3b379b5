// Package storage keeps uploaded post images and hands back opaque references.
package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned for uploads that do not decode as a supported image.
var ErrNotImage = errors.New("file is not a supported image")

// BlobStore persists a file and returns a stable reference to it.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
}

// ImageInfo describes a sniffed upload.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// InspectImage decodes only the image header of r.
func InspectImage(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, ErrNotImage
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ObjectName builds a collision free name that keeps the original extension.
func ObjectName(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%s%s", now.Format("20060102"), uuid.New().String(), ext)
}
