package logging

import (
	"strings"
	"unicode/utf8"
)

// RedactEmail keeps the first two runes of the local part and the domain,
// e.g. "student@gmail.com" -> "st****@gmail.com". Malformed input and local
// parts shorter than three runes are returned unchanged.
func RedactEmail(s string) string {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return s
	}

	local, domain := s[:at], s[at+1:]
	if utf8.RuneCountInString(local) < 3 {
		return s
	}

	offset := 0
	for n := 0; n < 2; n++ {
		_, size := utf8.DecodeRuneInString(local[offset:])
		offset += size
	}
	return local[:offset] + "****@" + domain
}
