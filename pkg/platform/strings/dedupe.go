// Package strings provides string and slice helpers shared across packages.
package strings

import (
	"strings"
)

// Dedupe returns the distinct values in first-seen order.
func Dedupe[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// SplitList splits a comma separated list, trimming whitespace and dropping
// empty and repeated items. Order is preserved.
//
// Example:
//
//	SplitList(" k1:9092, k2:9092,,k1:9092")
//	// Returns: []string{"k1:9092", "k2:9092"}
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return Dedupe(trimmed)
}
