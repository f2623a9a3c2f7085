// Package faqcache stores reusable AI answers keyed by a normalized question
// fingerprint, so repeated questions skip the model call.
package faqcache

import (
	"strings"
	"unicode/utf8"
)

// MinAnswerLength is the shortest answer, in characters, worth caching.
const MinAnswerLength = 20

// rejectMarkers flag failure or refusal answers that must not be replayed.
var rejectMarkers = []string{
	"error",
	"no puedo", // "I cannot"
}

// ShouldCache reports whether an answer is safe and useful to cache.
func ShouldCache(answer string) bool {
	if utf8.RuneCountInString(answer) < MinAnswerLength {
		return false
	}
	lower := toLower(answer)
	for _, m := range rejectMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}
