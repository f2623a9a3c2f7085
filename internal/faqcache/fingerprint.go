package faqcache

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases a question, composes accents to NFC and collapses
// whitespace, so trivially different phrasings share a fingerprint.
func Normalize(question string) string {
	s := norm.NFC.String(question)
	s = toLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint returns the hex BLAKE2b-256 digest of the normalized question.
func Fingerprint(question string) string {
	sum := blake2b.Sum256([]byte(Normalize(question)))
	return hex.EncodeToString(sum[:])
}

// toLower applies Unicode lower-casing. Casers hold state, so each call gets its own.
func toLower(s string) string {
	return cases.Lower(language.Und).String(s)
}
