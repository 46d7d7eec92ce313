package util

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	// punctuationPattern matches the punctuation stripped before hashing.
	// "Unit #4" and "Unit 4" deliberately collide; dedup accuracy wins over
	// punctuation fidelity.
	punctuationPattern = regexp.MustCompile(`[.,#]`)
	// multiSpacePattern matches runs of whitespace characters.
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeAddress reduces a raw address string to its canonical form:
// lower-cased, punctuation stripped, whitespace collapsed, trimmed. The
// result depends only on the input, never on locale or time.
func NormalizeAddress(raw string) string {
	s := strings.ToLower(raw)
	s = punctuationPattern.ReplaceAllString(s, "")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// HashAddress returns the identity key for a raw address: the SHA-256 hex
// digest of its normalized form. The digest is one-way; the original address
// cannot be recovered and is never stored.
func HashAddress(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeAddress(raw)))
	return hex.EncodeToString(sum[:])
}
