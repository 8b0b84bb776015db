package encoding

import (
	"strings"
	"unicode/utf8"
)

const (
	// replacementChar is U+FFFD, emitted by decoders for undecodable input.
	replacementChar = "\uFFFD"
	// doubleEncodedReplacement is U+FFFD read back as Windows-1252 and
	// re-encoded to UTF-8.
	doubleEncodedReplacement = "\u00ef\u00bf\u00bd"
)

// IsValidConversion reports whether s is well-formed UTF-8 that carries no
// trace of an earlier lossy conversion.
func IsValidConversion(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	if strings.Contains(s, replacementChar) {
		return false
	}
	return !strings.Contains(s, doubleEncodedReplacement)
}
