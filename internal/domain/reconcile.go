package domain

// ReconcileResult is the outcome of merging a remote batch into local quotes.
type ReconcileResult struct {
	// Quotes is the merged sequence.
	Quotes []Quote

	// Conflicts counts local quotes overwritten by a remote quote with the same text.
	Conflicts int

	// Added counts remote quotes appended because no local quote had their text.
	Added int
}

// Changed reports whether the merge altered anything.
func (r ReconcileResult) Changed() bool {
	return r.Conflicts > 0 || r.Added > 0
}

// Reconcile merges remote into local with remote-wins-on-text-collision semantics.
//
// For each remote quote, in order: a local quote with identical text is
// replaced in place; otherwise the remote quote is appended. Lookups see
// earlier merges from the same batch, so a batch repeating a text appends it
// once and then overwrites it.
//
// Neither input slice is modified.
func Reconcile(local, remote []Quote) ReconcileResult {
	merged := make([]Quote, len(local), len(local)+len(remote))
	copy(merged, local)

	// First index of each text; a replace keeps the position, so the index stays valid.
	index := make(map[string]int, len(merged)+len(remote))
	for i, q := range merged {
		if _, seen := index[q.Text]; !seen {
			index[q.Text] = i
		}
	}

	result := ReconcileResult{}

	for _, r := range remote {
		if i, ok := index[r.Text]; ok {
			merged[i] = r
			result.Conflicts++

			continue
		}

		index[r.Text] = len(merged)
		merged = append(merged, r)
		result.Added++
	}

	result.Quotes = merged

	return result
}
