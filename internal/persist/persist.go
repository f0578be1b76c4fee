package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Keys used by the location state. Reads of any of these must tolerate
// absence or garbage; the resolver falls back to defaults instead of failing.
const (
	KeyLastCity          = "lastCity"
	KeyLastCoordinates   = "lastCoordinates"
	KeyRecentSearches    = "recentSearches"
	KeyFavoriteLocations = "favoriteLocations"
)

// Store is a synchronous string key-value substrate. Get reports absence
// with the boolean; Set overwrites unconditionally.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// FileStore implements Store as a single JSON file of string pairs.
// A missing or corrupt file starts the store empty rather than failing;
// only write failures surface as errors.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStore opens (or initializes) the store at path. Never fails on
// unreadable or malformed content: state that cannot be parsed is discarded.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, data: make(map[string]string)}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var loaded map[string]string
	if err := json.Unmarshal(raw, &loaded); err != nil || loaded == nil {
		return s
	}
	s.data = loaded
	return s
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key and writes the file through.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// MemoryStore implements Store in memory. Used in tests and as a fallback
// when no state path is configured.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
