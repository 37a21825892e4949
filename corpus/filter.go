package corpus

import (
	"strings"
	"unicode/utf8"
)

// KeywordFilter decides locally whether a chapter can involve the character at
// all. A chapter passes when it contains any keyword.
type KeywordFilter struct {
	keywords []string
}

// NewKeywordFilter builds a filter from explicit keywords. Blank and duplicate
// entries are dropped.
func NewKeywordFilter(keywords ...string) KeywordFilter {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return KeywordFilter{keywords: out}
}

// CharacterFilter is the default filter for a character: the full name, the
// name without its first rune when shortName is set (surname drop), and nicknames.
func CharacterFilter(name string, shortName bool, nicknames []string) KeywordFilter {
	keys := []string{name}
	if shortName {
		keys = append(keys, ShortName(name))
	}
	keys = append(keys, nicknames...)
	return NewKeywordFilter(keys...)
}

// ShortName drops the first rune of name. Single-rune names yield "".
func ShortName(name string) string {
	name = strings.TrimSpace(name)
	_, size := utf8.DecodeRuneInString(name)
	return name[size:]
}

// Keywords returns the filter's keywords in insertion order.
func (f KeywordFilter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Match reports whether text contains any keyword. An empty filter matches everything.
func (f KeywordFilter) Match(text string) bool {
	if len(f.keywords) == 0 {
		return true
	}
	for _, k := range f.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
