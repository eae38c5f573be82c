// Package filestore keeps small JSON documents as files in one directory.
// Writes go through a temp file and rename so readers never see a partial
// document.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/dividendos/internal/common"
)

var (
	// ErrNotFound is returned when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrEmpty is returned when the document exists but has no content.
	ErrEmpty = errors.New("document is empty")
)

// Store is a directory of JSON documents addressed by key.
type Store struct {
	dir    string
	logger *common.Logger
}

// New creates the directory if needed and returns a store rooted there.
func New(logger *common.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	logger.Debug().Str("path", dir).Msg("File store opened")
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

// ReadRaw returns the document bytes for key.
func (s *Store) ReadRaw(key string) ([]byte, error) {
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("'%s': %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("'%s': %w", key, ErrEmpty)
	}
	return data, nil
}

// ReadJSON decodes the document for key into dest.
func (s *Store) ReadJSON(key string, dest interface{}) error {
	data, err := s.ReadRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode '%s': %w", key, err)
	}
	return nil
}

// WriteJSON encodes data as indented JSON and replaces the document atomically.
func (s *Store) WriteJSON(key string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return s.WriteRaw(key, append(jsonData, '\n'))
}

// WriteRaw replaces the document for key with data atomically.
func (s *Store) WriteRaw(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Copy duplicates the document at src into dst.
func (s *Store) Copy(src, dst string) error {
	data, err := s.ReadRaw(src)
	if err != nil {
		return err
	}
	return s.WriteRaw(dst, data)
}

// Stat returns file info for the document at key.
func (s *Store) Stat(key string) (os.FileInfo, error) {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("'%s': %w", key, ErrNotFound)
		}
		return nil, err
	}
	return info, nil
}

// Delete removes the document at key. A missing document is not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete '%s': %w", key, err)
	}
	return nil
}

// PurgeTemp removes temp files left behind by interrupted writes and
// returns how many were deleted.
func (s *Store) PurgeTemp() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
			count++
		}
	}
	if count > 0 {
		s.logger.Info().Int("count", count).Msg("Removed stale temp files")
	}
	return count
}
