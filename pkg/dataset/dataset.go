// Package dataset discovers datasets and their image files on disk.
//
// A dataset is a directory directly under the dataset root. Its images
// are every file below it with a recognized image extension.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound reports a missing dataset directory or image file.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath reports an image path that escapes its dataset
	// directory or a malformed dataset name.
	ErrInvalidPath = errors.New("invalid path")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImageFile reports whether the file name has a recognized image
// extension (case-insensitive).
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Root is a dataset root directory.
type Root struct {
	dir string
}

// NewRoot returns a Root for the given directory. The directory does not
// need to exist yet; a missing root simply has no datasets.
func NewRoot(dir string) *Root {
	return &Root{dir: dir}
}

// Path returns the root directory path.
func (r *Root) Path() string {
	return r.dir
}

// List returns dataset names sorted case-insensitively.
func (r *Root) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

// Dir resolves a dataset name to its directory, verifying it exists.
func (r *Root) Dir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("dataset name %q: %w", name, ErrInvalidPath)
	}
	dir := filepath.Join(r.dir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	return dir, nil
}

// ListImages returns the dataset's image files as slash-separated paths
// relative to the dataset directory, sorted case-insensitively.
func (r *Root) ListImages(name string) ([]string, error) {
	dir, err := r.Dir(name)
	if err != nil {
		return nil, err
	}

	var images []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsImageFile(p) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		images = append(images, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan dataset %q: %w", name, err)
	}

	sort.Slice(images, func(i, j int) bool {
		return strings.ToLower(images[i]) < strings.ToLower(images[j])
	})
	return images, nil
}

// ResolveImage resolves a relative image path inside a dataset to an
// absolute file path. Paths that escape the dataset directory are
// rejected even when the target exists.
func (r *Root) ResolveImage(name, relative string) (string, error) {
	dir, err := r.Dir(name)
	if err != nil {
		return "", err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	candidate, err := filepath.Abs(filepath.Join(absDir, filepath.FromSlash(relative)))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("image path %q: %w", relative, ErrInvalidPath)
	}

	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("image %q: %w", relative, ErrNotFound)
	}
	return candidate, nil
}
