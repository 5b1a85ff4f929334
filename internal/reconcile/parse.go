// Package reconcile compares the document catalog against a CSV export of
// the publisher's store and repairs author associations to match it.
package reconcile

import "strings"

// ParseAuthors splits a raw author string from the CSV into individual
// author names. Delimiters are tried in precedence order:
//
//  1. ";"      "A; B; C"
//  2. ","      "A, B, and C" (a leading "and " on the final
//     comma-separated segment is stripped, so the Oxford form
//     yields ["A", "B", "C"], not a dangling "and C")
//  3. " and "  "A and B"
//
// The first delimiter present wins; later ones are not applied to the
// resulting segments. Segments are whitespace-trimmed and empties are
// dropped. An empty or blank input yields an empty slice.
func ParseAuthors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	var parts []string
	switch {
	case strings.Contains(raw, ";"):
		parts = strings.Split(raw, ";")
	case strings.Contains(raw, ","):
		parts = strings.Split(raw, ",")
		last := len(parts) - 1
		trimmed := strings.TrimSpace(parts[last])
		if rest, ok := strings.CutPrefix(trimmed, "and "); ok {
			parts[last] = rest
		}
	case strings.Contains(raw, " and "):
		parts = strings.Split(raw, " and ")
	default:
		parts = []string{raw}
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}
