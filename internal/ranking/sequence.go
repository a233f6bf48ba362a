package ranking

// Resequence assigns dense manual ranks 1..N to the given item IDs in list
// order. Any prior ranks are fully overwritten by the returned mapping; gaps
// and duplicates left behind by partial failures are repaired by the next
// full resequence.
//
// Resequence is order preserving only. Items with no prior rank must be
// placed by the caller (by convention, appended after ranked items) before
// invoking.
func Resequence(orderedIDs []string) map[string]int {
	ranks := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		ranks[id] = i + 1
	}
	return ranks
}
