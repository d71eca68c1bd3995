package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore is a local-disk ObjectStore used in development and
// small single-node deployments. Locators map directly to paths under the
// base directory; URLs are served by the static file route.
type FilesystemStore struct {
	baseDir string
	baseURL string
}

// NewFilesystemStore creates the base directory if needed.
func NewFilesystemStore(baseDir, baseURL string) (*FilesystemStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("object store base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}
	return &FilesystemStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put writes the object, creating the owner-context directory on demand.
func (s *FilesystemStore) Put(_ context.Context, locator string, data []byte, _ string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// PublicURL resolves the locator against the configured base URL.
func (s *FilesystemStore) PublicURL(locator string) string {
	parts := strings.Split(locator, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Delete removes the object; a missing object is not an error.
func (s *FilesystemStore) Delete(_ context.Context, locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns every locator under the prefix.
func (s *FilesystemStore) List(_ context.Context, prefix string) ([]string, error) {
	root, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var locators []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		locators = append(locators, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locators, nil
}

// resolve maps a locator to a path under baseDir, rejecting traversal.
func (s *FilesystemStore) resolve(locator string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(locator))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage locator: %s", locator)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
