package csv

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader converts header text into a canonical snake_case column
// name: lowercase, accents stripped, runs of space, dash or dot collapsed to
// one underscore, everything else outside [a-z0-9_] dropped.
//
// "Policy ID" -> "policy_id", "Inception-Date" -> "inception_date".
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// normalizeHeaders maps each header through HeaderMap (exact source name
// first, then the normalized name) and NormalizeHeader. Empty results become
// col_N.
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	h = StripHeaderBOM(h)
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if m, ok := headerMap[c]; ok {
			res[i] = m
			continue
		}
		n := NormalizeHeader(c)
		if m, ok := headerMap[n]; ok {
			n = m
		}
		res[i] = keyFor(i, n)
	}
	return res
}
