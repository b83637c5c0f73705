// Package strings holds string slice helpers for user-supplied lists.
package strings

import (
	"strings"
)

// Normalizer maps a raw value to its comparison form. Values that normalize to
// the empty string are dropped.
type Normalizer func(string) string

var (
	// Trim compares values after trimming whitespace.
	Trim Normalizer = strings.TrimSpace
	// TrimLower compares values case-insensitively, as email addresses are.
	TrimLower Normalizer = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
)

// Dedupe returns the normalized form of each distinct value in first-seen
// order. The result is never nil so it encodes as a JSON array.
//
//	Dedupe([]string{" Bob@y.com", "alice@x.com", "bob@Y.com", ""}, TrimLower)
//	// []string{"bob@y.com", "alice@x.com"}
func Dedupe(values []string, norm Normalizer) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		key := norm(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}

// DedupeAndTrimLower is Dedupe with TrimLower.
func DedupeAndTrimLower(values []string) []string {
	return Dedupe(values, TrimLower)
}

// SplitList parses a comma separated setting such as a broker list. Blank and
// repeated entries are dropped.
func SplitList(raw string) []string {
	return Dedupe(strings.Split(raw, ","), Trim)
}
