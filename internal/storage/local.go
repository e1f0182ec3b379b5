package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Local writes files into a directory served under urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewLocal returns a filesystem BlobStore.
func NewLocal(dir, urlPrefix string) *Local {
	prefix := strings.TrimRight(strings.TrimSpace(urlPrefix), "/")
	if prefix == "" {
		prefix = "/static/uploads"
	}
	return &Local{dir: dir, urlPrefix: prefix, now: time.Now}
}

func (s *Local) Put(ctx context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	objectName := ObjectName(name, s.now())
	dst, err := os.Create(filepath.Join(s.dir, objectName))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return path.Join(s.urlPrefix, objectName), nil
}
