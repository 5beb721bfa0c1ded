package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// ComputeHash returns the hex sha256 of the normalized body. Normalization trims,
// lowercases and collapses whitespace runs, so formatting changes do not alter the
// digest but any change in word order does. A body that normalizes to nothing has
// no hash; callers treat "" as absent and never match on it.
func ComputeHash(body string) string {
	norm := Normalize(body)
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases body and collapses every whitespace run (NBSP included) to one space.
func Normalize(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	space := false
	for _, r := range body {
		if unicode.IsSpace(r) || r == '\u200b' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
