// Package services holds the lending rules: the equipment registry, the code generator,
// the requisition lifecycle and account management. Every mutation checks the caller
// through access.Require before touching the store.
package services

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func timePtr(t time.Time) *time.Time { return &t }

// fold lowercases and strips diacritics so "Tenda" matches "tênda".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// matchesText is true when every word of q occurs in one of fields.
func matchesText(q string, fields ...string) bool {
	words := strings.Fields(fold(q))
	if len(words) == 0 {
		return true
	}
	hay := make([]string, len(fields))
	for i, f := range fields {
		hay[i] = fold(f)
	}
	for _, w := range words {
		found := false
		for _, h := range hay {
			if strings.Contains(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
