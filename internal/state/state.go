// Package state persists the synchronization cursor between runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultCursorFile = "cursor.json"

// Cursor marks the last feed position consumed by a successful run.
// LastProcessedID is empty until the first item has been mirrored.
type Cursor struct {
	LastProcessedID string    `json:"last_processed_id"`
	Initialized     bool      `json:"initialized"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Store reads and writes the cursor file for one project.
type Store struct {
	path string
}

// NewStore creates a cursor store backed by the given file path.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state: path is required")
	}
	return &Store{path: path}, nil
}

// Load returns the persisted cursor, or the zero cursor if no state
// file exists yet. A present but unreadable file is an error: silently
// starting over would re-post the whole backlog.
func (s *Store) Load() (Cursor, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Cursor{}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("read cursor: %w", err)
	}

	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return Cursor{}, fmt.Errorf("parse cursor %s: %w", s.path, err)
	}
	return cur, nil
}

// Save overwrites the cursor file atomically: the new state is written
// to a temp file in the same directory and renamed into place, so a
// crash mid-save never leaves a partial cursor behind.
func (s *Store) Save(cur Cursor) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".cursor-*.json")
	if err != nil {
		return fmt.Errorf("create temp cursor: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cursor: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cursor: %w", err)
	}
	return nil
}

// Path returns the cursor file location.
func (s *Store) Path() string {
	return s.path
}
