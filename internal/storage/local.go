package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploaded videos to a directory on local disk.
type LocalStore struct {
	dir string
}

// NewLocalStore ensures the upload directory exists and returns a store
// writing into it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the content to disk under a sanitized form of name and returns
// the resulting path. Names that do not carry an accepted video extension are
// rejected with ErrUnsupportedExtension.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !AllowedExtension(name) {
		return "", ErrUnsupportedExtension
	}

	clean := SanitizeFilename(name)
	if clean == "" {
		return "", fmt.Errorf("local storage: empty filename")
	}

	path := filepath.Join(s.dir, clean)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload %s: %w", clean, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload %s: %w", clean, err)
	}

	return path, nil
}

// SanitizeFilename strips directory components and characters outside a
// conservative allowlist, keeping uploads from escaping the storage directory.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return ""
	}
	return cleaned
}

var _ Store = (*LocalStore)(nil)
