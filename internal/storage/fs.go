// Package storage provides the filesystem-backed artifact store and the
// directory layout shared by the pipeline stages.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// File and directory permissions.
const (
	filePermissions = 0o644
	dirPermissions  = 0o750
)

// Static errors.
var (
	ErrRootEmpty   = errors.New("storage root cannot be empty")
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidPath = errors.New("artifact path must be relative and stay inside the root")
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtNotFound          = "%w: %s"
)

// tempSuffixPattern matches the names of in-flight atomic writes.
var tempSuffixPattern = regexp.MustCompile(`\.tmp-\d+$`)

// FS implements core.ArtifactStore on a local directory tree.
type FS struct {
	root string
}

// New creates a store rooted at root. The directory is created on first write.
func New(root string) (*FS, error) {
	if root == "" {
		return nil, ErrRootEmpty
	}

	return &FS{root: root}, nil
}

// Root returns the directory the store is rooted at.
func (s *FS) Root() string {
	return s.root
}

// Exists reports whether an artifact is present at the relative path.
func (s *FS) Exists(relPath string) bool {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return false
	}

	info, statErr := os.Stat(fullPath)

	return statErr == nil && info.Mode().IsRegular()
}

// Load reads a whole artifact. A missing artifact yields ErrNotFound.
func (s *FS) Load(relPath string) (string, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}

	data, readErr := os.ReadFile(fullPath)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return "", fmt.Errorf(errFmtNotFound, ErrNotFound, relPath)
		}

		return "", fmt.Errorf("failed to read artifact %s: %w", relPath, readErr)
	}

	return string(data), nil
}

// Store creates the missing parent directories and writes content through a
// temporary file that is renamed into place, so a partial write never appears
// as a complete artifact.
func (s *FS) Store(relPath, content string) error {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	dirErr := EnsureDir(filepath.Dir(fullPath))
	if dirErr != nil {
		return dirErr
	}

	writeErr := writeFileAtomic(fullPath, []byte(content))
	if writeErr != nil {
		return fmt.Errorf("failed to write artifact %s: %w", relPath, writeErr)
	}

	return nil
}

// List returns the sorted names of the artifacts directly under dir. A missing
// directory has no entries.
func (s *FS) List(dir string) ([]string, error) {
	fullPath, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, readErr := os.ReadDir(fullPath)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, readErr)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() || tempSuffixPattern.MatchString(entry.Name()) {
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}

// resolve maps a slash-separated relative path onto the root.
func (s *FS) resolve(relPath string) (string, error) {
	cleaned := path.Clean(relPath)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}

	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(dirPath string) error {
	_, statErr := os.Stat(dirPath)
	if errors.Is(statErr, fs.ErrNotExist) {
		mkdirErr := os.MkdirAll(dirPath, dirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, dirPath, mkdirErr)
		}
	}

	return nil
}

func writeFileAtomic(fullPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_, err = tmp.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	err = tmp.Chmod(filePermissions)
	if err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	err = os.Rename(tmpName, fullPath)
	if err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}
