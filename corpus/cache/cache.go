// Package cache is a content-addressed store of extraction results.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

const entryExt = ".json"

// Fingerprint returns the cache key for a chapter under a fully rendered prompt.
// Any change to either input changes the key.
func Fingerprint(chapterText, effectivePrompt string) string {
	h := xxh3.New()
	_, _ = h.WriteString(chapterText)
	_, _ = h.WriteString(effectivePrompt)
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// Entry is a cached document together with the exact bytes on disk.
type Entry struct {
	Key string
	Raw []byte
	Doc corpus.Document
}

// Store keeps one JSON file per key under Dir.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New opens (and creates) a store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache.New: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache.New: mkdir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+entryExt)
}

// Get returns the entry for key. Unreadable or malformed entries are misses.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, false
	}
	doc, err := corpus.DecodeDocument(b)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Key: key, Raw: b, Doc: doc}, true
}

// Put stores raw under key, replacing any previous entry.
func (s *Store) Put(key string, raw []byte) error {
	if key == "" {
		return errors.New("cache.Put: key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutils.WriteFileAtomicSameDir(s.path(key), raw, 0o644); err != nil {
		return fmt.Errorf("cache.Put: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache.Clear: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entryExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("cache.Clear: %w", err)
		}
		n++
	}
	return n, nil
}
