package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"matchbook/internal/contextutil"
)

// FSArchive implements Archive on a local directory. It is the default for
// development and single-node deployments; snapshots land under root with
// the object path as the relative file path.
type FSArchive struct {
	root string
}

// NewFSArchive creates the root directory when absent.
func NewFSArchive(root string) (*FSArchive, error) {
	if root == "" {
		return nil, fmt.Errorf("archive root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FSArchive{root: root}, nil
}

func (a *FSArchive) fullPath(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid archive path %q", path)
	}
	return filepath.Join(a.root, cleaned), nil
}

// Put writes content at path, creating intermediate directories.
func (a *FSArchive) Put(ctx context.Context, path string, content []byte) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	full, err := a.fullPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		logger.ErrorContext(ctx, "failed to write archive object", "path", path, "error", err)
		return "", fmt.Errorf("failed to write archive object: %w", err)
	}
	return a.Link(path), nil
}

// Get reads the object at path.
func (a *FSArchive) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := a.fullPath(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive object: %w", err)
	}
	return content, nil
}

// List walks the subtree under prefix and returns object paths in
// slash-separated form.
func (a *FSArchive) List(ctx context.Context, prefix string) ([]string, error) {
	full, err := a.fullPath(prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archive objects: %w", err)
	}
	return paths, nil
}

// Delete removes the object at path. Absent paths are a no-op.
func (a *FSArchive) Delete(ctx context.Context, path string) error {
	full, err := a.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete archive object: %w", err)
	}
	return nil
}

// DeletePrefix removes the whole subtree under prefix.
func (a *FSArchive) DeletePrefix(ctx context.Context, prefix string) error {
	logger := contextutil.LoggerFromContext(ctx)

	full, err := a.fullPath(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		logger.ErrorContext(ctx, "failed to delete archive prefix", "prefix", prefix, "error", err)
		return fmt.Errorf("failed to delete archive prefix: %w", err)
	}
	return nil
}

// Link returns a file URL for the object.
func (a *FSArchive) Link(path string) string {
	return "file://" + filepath.ToSlash(filepath.Join(a.root, filepath.FromSlash(path)))
}
