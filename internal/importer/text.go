package importer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cleanText normalizes user-visible text to NFC and strips control characters
// that archive exporters leak into captions. Newlines and tabs survive.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
