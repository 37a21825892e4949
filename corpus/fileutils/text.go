package fileutils

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadText reads a text file as UTF-8, falling back to GBK and then UTF-16.
// If none decode cleanly the invalid bytes are dropped.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(b), nil
}

// DecodeText applies the same fallback chain as ReadText to raw bytes.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(bytes.TrimPrefix(b, utf8BOM))
	}
	if s, ok := decodeStrict(simplifiedchinese.GBK, b); ok {
		return s
	}
	if len(b)%2 == 0 {
		if s, ok := decodeStrict(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), b); ok {
			return s
		}
	}
	return strings.ToValidUTF8(string(b), "")
}

// decodeStrict rejects a decoding that had to substitute replacement characters.
func decodeStrict(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
