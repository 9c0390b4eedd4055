package util

import (
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalEmail normalizes an email address for comparison and transmission:
// Unicode NFKC normalization, whitespace trimmed, lowercased.
func CanonicalEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// WipeBytes best-effort zeroes the provided byte slice in place.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
