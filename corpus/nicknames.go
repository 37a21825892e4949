package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// NicknameBook maps source novel -> character -> nicknames.
type NicknameBook map[string]map[string][]string

// LoadNicknames reads a nickname book. If the file doesn't exist, it returns an empty book.
func LoadNicknames(path string) (NicknameBook, error) {
	if path == "" {
		return NicknameBook{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NicknameBook{}, nil
		}
		return nil, fmt.Errorf("LoadNicknames: read file: %w", err)
	}
	var book NicknameBook
	if err := json.Unmarshal(b, &book); err != nil {
		return nil, fmt.Errorf("LoadNicknames: unmarshal: %w", err)
	}
	if book == nil {
		book = NicknameBook{}
	}
	return book, nil
}

// Lookup returns the nicknames for character in novel. An empty novel searches
// every novel in the book. Results are deduplicated case-insensitively and keep
// their first-seen order; the character's own name is never returned.
func (b NicknameBook) Lookup(novel, character string) []string {
	var raw []string
	if novel != "" {
		raw = b[novel][character]
	} else {
		for _, chars := range b {
			raw = append(raw, chars[character]...)
		}
	}
	return MergeNicknames(nil, raw, character)
}

// MergeNicknames appends additions to existing, skipping blanks, the
// character's own name, and case-insensitive duplicates.
func MergeNicknames(existing, additions []string, character string) []string {
	seen := make(map[string]struct{}, len(existing)+len(additions))
	if key := normalizeNicknameKey(character); key != "" {
		seen[key] = struct{}{}
	}
	out := make([]string, 0, len(existing)+len(additions))
	for _, list := range [][]string{existing, additions} {
		for _, n := range list {
			key := normalizeNicknameKey(n)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(n))
		}
	}
	return out
}

func normalizeNicknameKey(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}
