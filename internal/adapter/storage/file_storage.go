package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DiskStorage keeps uploaded images under dir and hands out paths relative to
// the public prefix the HTTP server serves dir from.
type DiskStorage struct {
	dir    string
	prefix string
}

func NewDiskStorage(dir, prefix string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{dir: dir, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *DiskStorage) Store(ctx context.Context, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("unsupported image format %q: %w", ext, domain.ErrInvalidInput)
	}

	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close file: %w", err)
	}

	return path.Join(s.prefix, name), nil
}

func (s *DiskStorage) Delete(ctx context.Context, p string) error {
	name := path.Base(p)
	if name == "." || name == "/" || p == domain.DefaultImagePath {
		return nil
	}
	return os.Remove(filepath.Join(s.dir, name))
}
