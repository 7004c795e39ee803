package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedExtension indicates a filename whose extension is not an
// accepted video container format.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// Store persists uploaded video bytes under a name and returns their location.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// allowedExtensions is the closed set of accepted upload container formats.
var allowedExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mkv": {},
}

// AllowedExtension reports whether the filename carries an accepted video
// extension, compared case-insensitively.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := allowedExtensions[ext]
	return ok
}
