// Package workshop turns free-form user input into an ordered, deduplicated
// list of Steam Workshop item identifiers.
package workshop

import "strings"

// ID is an opaque Steam Workshop published file identifier. Two IDs are the
// same item iff their strings are equal.
type ID string

func (id ID) String() string { return string(id) }

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Dedup returns ids with later duplicates removed, preserving first-seen order.
func Dedup(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SplitLines splits raw text into lines, accepting both \n and \r\n.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
