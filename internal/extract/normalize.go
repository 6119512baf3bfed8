package extract

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var reCRLF = regexp.MustCompile(`\r\n?`)

// Normalize converts line endings to LF and composes Hangul jamo into syllables
// so that [가-힣] ranges match text pasted from decomposing sources.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	return norm.NFC.String(s)
}
