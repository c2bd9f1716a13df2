// Package imagestore implements the expense.ImageStore port on the local
// filesystem.
package imagestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir stores receipt images as files under a single directory.
type Dir struct {
	root   string
	logger *slog.Logger
}

// New creates the backing directory if needed and returns a store over it.
func New(root string, logger *slog.Logger) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", root, err)
	}
	return &Dir{root: root, logger: logger}, nil
}

// Save writes the image bytes and returns the stored path. When filename is
// empty a unique name is generated.
func (d *Dir) Save(data []byte, filename string) (string, error) {
	if filename == "" {
		filename = uuid.NewString() + ".jpg"
	}
	path := filepath.Join(d.root, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", path, err)
	}
	return path, nil
}

// Delete removes the image at path, reporting whether it was removed.
func (d *Dir) Delete(path string) bool {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			d.logger.Warn("failed to remove image", "path", path, "error", err)
		}
		return false
	}
	return true
}

// Exists reports whether an image is present at path.
func (d *Dir) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
