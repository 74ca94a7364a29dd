// Package state persists each book's last locator and preferences across
// reader sessions, on behalf of the hosting shell. The reading session
// itself never touches this store; it only hands a (locator, preferences)
// pair back on close.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fable/internal/engine"
)

const (
	stateFileName = "bookmarks.json"
	hashBytes     = 8192 // first 8KB for content hash
)

// Bookmark is what survives between sessions for one book.
type Bookmark struct {
	Locator     *engine.Locator    `json:"locator,omitempty"`
	Preferences engine.Preferences `json:"preferences"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Store manages persistent bookmarks.
type Store struct {
	path string
	data map[string]Bookmark
	mu   sync.RWMutex
}

// NewStore creates or loads bookmarks from XDG_STATE_HOME/fable.
func NewStore() (*Store, error) {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	store := &Store{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]Bookmark),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = make(map[string]Bookmark)
	}
	return store, nil
}

// stateDir returns XDG_STATE_HOME/fable or ~/.local/state/fable.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "fable")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "fable")
}

// KeyFor identifies a source for bookmark lookups: local files are keyed by
// content so moved or renamed copies keep their place, remote sources by the
// source string since no content exists before the first fetch.
func KeyFor(source string) (string, error) {
	if _, err := os.Stat(source); err == nil {
		return contentHash(source)
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:16]), nil
}

// contentHash generates a content hash from the file's first 8KB.
func contentHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil
}

// Get returns the saved bookmark for a key.
func (s *Store) Get(key string) (Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.data[key]
	return bm, ok
}

// Set saves a bookmark for a key.
func (s *Store) Set(key string, bm Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm.UpdatedAt = time.Now().UTC()
	s.data[key] = bm
	return s.save()
}

// Clear removes the bookmark for a key.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.save()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
