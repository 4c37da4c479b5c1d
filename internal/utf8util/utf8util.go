// Package utf8util implements the UTF-8 codec spec.md §6 treats as an
// external collaborator: splitting a byte string into codepoints and
// converting a single codepoint to and from its UTF-8 encoding.
package utf8util

import (
	"fmt"
	"unicode/utf8"
)

// SplitToCodepoints decodes s into its sequence of Unicode codepoints.
// An invalid UTF-8 sequence is reported as an error rather than
// silently substituted, since the engine treats an unknown codepoint
// as a reset-to-start signal and must be able to tell it apart from a
// valid but out-of-vocabulary one.
func SplitToCodepoints(s string) ([]rune, error) {
	runes := make([]rune, 0, len(s))
	for i, w := 0, 0; i < len(s); i += w {
		r, width := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && width <= 1 {
			return nil, fmt.Errorf("utf8util: invalid UTF-8 sequence at byte %d", i)
		}
		runes = append(runes, r)
		w = width
	}
	return runes, nil
}

// EncodeCodepoint returns cp's UTF-8 encoding.
func EncodeCodepoint(cp rune) []byte {
	buf := make([]byte, utf8.RuneLen(cp))
	utf8.EncodeRune(buf, cp)
	return buf
}

// DecodeSingle decodes the first codepoint of b, returning the
// codepoint and the number of bytes it occupied.
func DecodeSingle(b []byte) (rune, int, error) {
	r, width := utf8.DecodeRune(b)
	if r == utf8.RuneError && width <= 1 {
		return 0, 0, fmt.Errorf("utf8util: invalid UTF-8 sequence")
	}
	return r, width, nil
}
