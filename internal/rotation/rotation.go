// Package rotation holds the pure ordering rules for converting accepted
// task requests into a rotation and for validating a submitted reorder.
package rotation

import "sort"

// ConversionOrder returns the assignee ids ranked for assignment creation.
// The tie-break is ascending assignee id so a conversion is reproducible
// regardless of the order requests were resolved in.
func ConversionOrder(assigneeIDs []int64) []int64 {
	ranked := make([]int64, len(assigneeIDs))
	copy(ranked, assigneeIDs)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i] < ranked[j] })
	return ranked
}

// IsPermutation reports whether submitted contains exactly the members of
// current: same cardinality, same elements, no duplicates. Order is ignored.
func IsPermutation(submitted, current []string) bool {
	if len(submitted) != len(current) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, name := range current {
		counts[name]++
	}
	for _, name := range submitted {
		counts[name]--
		if counts[name] < 0 {
			return false
		}
	}
	return true
}

// IsDense reports whether orders is exactly {0, 1, ..., len-1}.
// Every assigned task must satisfy this at all times.
func IsDense(orders []int) bool {
	seen := make([]bool, len(orders))
	for _, o := range orders {
		if o < 0 || o >= len(orders) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}
