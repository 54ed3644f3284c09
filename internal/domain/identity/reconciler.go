// Package identity matches person names between two source systems that
// spell the same individual differently.
//
// Matching is greedy and order-dependent, not a globally optimal
// assignment: each source name takes the first qualifying candidate in
// candidate-list order, and a consumed candidate is never reassigned.
// With the daily technician volumes this runs over, greedy first-match is
// deterministic for a fixed input order and close enough; a weighted
// bipartite matching would change behavior on ambiguous inputs and is
// intentionally not attempted.
package identity

import "strings"

// maxEditDistance is the Levenshtein threshold for a fuzzy match.
const maxEditDistance = 2

// Reconcile maps names in listA to names in listB. Two passes, first pass
// wins: an exact pass over normalized strings, then a fuzzy pass over the
// leftovers accepting first/last token swaps ("Smith, Jane" vs
// "Jane Smith") or an edit distance of at most 2. Each listB name is
// consumed at most once; unmatched names are simply absent from the map.
func Reconcile(listA, listB []string) map[string]string {
	mapping := make(map[string]string)
	consumed := make([]bool, len(listB))
	matchedA := make([]bool, len(listA))

	normB := make([]string, len(listB))
	for i, b := range listB {
		normB[i] = normalizeName(b)
	}

	// Exact pass.
	for i, a := range listA {
		na := normalizeName(a)
		if na == "" {
			matchedA[i] = true
			continue
		}
		for j := range listB {
			if consumed[j] || normB[j] != na {
				continue
			}
			mapping[a] = listB[j]
			consumed[j] = true
			matchedA[i] = true
			break
		}
	}

	// Fuzzy pass over the remainder, candidates tried in original order.
	for i, a := range listA {
		if matchedA[i] {
			continue
		}
		na := normalizeName(a)
		for j := range listB {
			if consumed[j] {
				continue
			}
			if tokensSwapped(na, normB[j]) || levenshtein(na, normB[j]) <= maxEditDistance {
				mapping[a] = listB[j]
				consumed[j] = true
				break
			}
		}
	}

	return mapping
}

// normalizeName trims, lowercases, strips commas, and collapses internal
// whitespace.
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, ",", " ")
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// tokensSwapped reports whether the first and last tokens of two
// normalized names are equal in either order. Handles "last first" vs
// "first last" entry conventions.
func tokensSwapped(a, b string) bool {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) < 2 || len(bt) < 2 {
		return false
	}
	aFirst, aLast := at[0], at[len(at)-1]
	bFirst, bLast := bt[0], bt[len(bt)-1]
	return (aFirst == bFirst && aLast == bLast) || (aFirst == bLast && aLast == bFirst)
}

// levenshtein is the standard dynamic-programming edit distance with unit
// insert, delete, and substitute costs.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
