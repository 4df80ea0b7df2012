package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured ceiling.
type ErrTooLarge struct {
	Limit int64
}

func (e ErrTooLarge) Error() string {
	return fmt.Sprintf("file exceeds the %d byte limit", e.Limit)
}

// ErrBadExtension is returned when an upload's extension is not allowed.
type ErrBadExtension struct {
	Ext     string
	Allowed []string
}

func (e ErrBadExtension) Error() string {
	return fmt.Sprintf("extension %q not allowed (allowed: %s)", e.Ext, strings.Join(e.Allowed, ", "))
}

// Store writes submission archives to a directory under generated names,
// keeping the original filename out of the filesystem path.
type Store struct {
	Dir        string
	MaxSize    int64
	Extensions []string
}

func New(dir string, maxSizeMB int64, extensions []string) *Store {
	return &Store{
		Dir:        dir,
		MaxSize:    maxSizeMB * 1024 * 1024,
		Extensions: extensions,
	}
}

func (s *Store) allowed(ext string) bool {
	for _, e := range s.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Save streams r to disk and returns the stored path. The size ceiling is
// enforced while copying, so an oversized body never lands fully on disk.
func (s *Store) Save(originalFilename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !s.allowed(ext) {
		return "", ErrBadExtension{Ext: ext, Allowed: s.Extensions}
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, s.MaxSize+1))
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if n > s.MaxSize {
		os.Remove(path)
		return "", ErrTooLarge{Limit: s.MaxSize}
	}
	return path, nil
}

// Remove deletes a stored archive, ignoring already-gone files.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
