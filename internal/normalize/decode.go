package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var unicodeEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)

// decodeText undoes one layer of the double-encoding one backend applies to
// non-ASCII text: literal \uXXXX escapes and percent-encoded bytes. Exactly
// one pass is attempted; anything that does not decode cleanly passes
// through unmodified.
func decodeText(s string) string {
	if s == "" {
		return s
	}
	if unicodeEscape.MatchString(s) {
		s = decodeUnicodeEscapes(s)
	}
	if strings.Contains(s, "%") {
		if decoded, err := url.PathUnescape(s); err == nil && utf8.ValidString(decoded) {
			s = decoded
		}
	}
	return s
}

func decodeUnicodeEscapes(s string) string {
	return unicodeEscape.ReplaceAllStringFunc(s, func(match string) string {
		code, err := strconv.ParseUint(match[2:], 16, 32)
		if err != nil || !utf8.ValidRune(rune(code)) {
			return match
		}
		return string(rune(code))
	})
}
