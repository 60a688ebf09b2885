// Package storage keeps uploaded audio on local disk. The stored
// reference is a path relative to the upload root, so the database stays
// portable across hosts sharing the same volume.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store saves and resolves audio files under a base directory.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir, creating it if needed.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Save writes an uploaded file under <base>/<userID>/<projectID>/ and
// returns the storage reference plus the size written. The stored name is
// randomized to avoid collisions and path tricks in client filenames.
func (s *Store) Save(file *multipart.FileHeader, userID, projectID int64) (ref string, size int64, err error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.New().String() + ext
	rel := filepath.Join(fmt.Sprint(userID), fmt.Sprint(projectID), name)
	dst := filepath.Join(s.baseDir, rel)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, fmt.Errorf("create project directory: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	size, err = io.Copy(out, src)
	if err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("write file: %w", err)
	}

	return rel, size, nil
}

// Resolve returns the absolute local path for a storage reference. It
// rejects references that escape the upload root.
func (s *Store) Resolve(ref string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.Clean(ref))
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage reference: %s", ref)
	}
	if _, err := os.Stat(absFull); err != nil {
		return "", fmt.Errorf("stat audio file: %w", err)
	}
	return absFull, nil
}

// Delete removes a stored file. A missing file is not an error.
func (s *Store) Delete(ref string) error {
	full, err := s.Resolve(ref)
	if err != nil {
		return nil
	}
	return os.Remove(full)
}
