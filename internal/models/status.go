package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeStatus canonicalizes a raw status cell for comparison.
// The empty string result marks an absent status; a non-empty cell
// always yields a non-empty normalized form, so the sentinel is safe.
func NormalizeStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// cases.Caser values are not safe for concurrent use
	return cases.Fold().String(s)
}

// StatusEqual compares two normalized statuses. Absent equals absent;
// absent never equals a concrete status.
func StatusEqual(a, b string) bool {
	return a == b
}
