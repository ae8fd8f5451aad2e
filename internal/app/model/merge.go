package model

// MergeLines folds guest lines into user lines.
// Quantities of shared products are summed and the user line keeps its price;
// guest-only lines are copied with the price they were captured at.
// Neither input slice is modified.
func MergeLines(guest, user []CartLine) []CartLine {
	merged := make([]CartLine, len(user), len(user)+len(guest))
	copy(merged, user)

	index := make(map[uint]int, len(merged))
	for i, l := range merged {
		index[l.ProductID] = i
	}

	for _, g := range guest {
		if i, ok := index[g.ProductID]; ok {
			merged[i].Quantity += g.Quantity
			continue
		}
		index[g.ProductID] = len(merged)
		merged = append(merged, g)
	}

	return merged
}
