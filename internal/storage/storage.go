package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// tempPattern names files that are still being written. Stored names start with a digit,
// so a leading dot never collides with one.
const tempPattern = ".upload-*"

// localStorage implements the services Storage interface using the local filesystem
type localStorage struct {
	basePath  string
	urlPrefix string
}

// NewLocalStorage creates a new localStorage instance
//
// "basePath" is the public directory that stored files are written under.
// "urlPrefix" is the URL path at which basePath is served, for example "/uploads".
func NewLocalStorage(basePath, urlPrefix string) *localStorage {
	return &localStorage{
		basePath:  basePath,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}
}

// dirPath returns the full path of a storage directory
func (s *localStorage) dirPath(dir string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(dir))
}

// validateName rejects names that would resolve outside of their directory
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid storage name %q", name)
	}
	return nil
}

// EnsureDir makes sure the directory exists, creating it and its parents when absent.
// Calling it for an existing directory is a no-op.
func (s *localStorage) EnsureDir(dir string) error {
	full := s.dirPath(dir)
	info, err := os.Stat(full)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", full)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Save writes the payload from reader into dir/name and returns the number of bytes written.
//
// The payload goes to a temporary file first, is synced to disk and then renamed into place,
// so a reader never observes a partially written file under its final name.
func (s *localStorage) Save(dir, name string, reader io.Reader) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	if err := s.EnsureDir(dir); err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.dirPath(dir), name)

	f, err := os.CreateTemp(s.dirPath(dir), tempPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := f.Name()

	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}

	cw := &countingWriter{w: f}
	if _, err := io.Copy(cw, reader); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename file: %w", err)
	}

	return cw.n, nil
}

// Delete removes a stored file. A file that does not exist is not an error.
func (s *localStorage) Delete(dir, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dirPath(dir), name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// PublicPath returns the address at which a stored file is served
func (s *localStorage) PublicPath(dir, name string) string {
	return path.Join(s.urlPrefix, dir, name)
}
