package port

import "ragengine/internal/domain"

// SearchFilter narrows which entries are eligible search results. Keys
// are metadata keys; a value is either a single accepted value or a
// slice of accepted values. All keys must match (logical AND).
type SearchFilter map[string]any

// VectorIndex stores embedded chunks and answers filtered similarity
// queries. The dimension is fixed by the first successful Add.
type VectorIndex interface {
	// Add appends a batch of entries. The batch is all-or-nothing: any
	// dimension mismatch rejects the whole batch.
	Add(entries []domain.Entry) error

	// Search returns at most k entries ordered by descending score,
	// ties broken by insertion order. A nil filter matches everything.
	// Searching an empty index returns an empty result, not an error.
	Search(query []float32, k int, filter SearchFilter) ([]domain.ScoredEntry, error)

	// Clear removes all entries but keeps the configured dimension.
	Clear()

	// Persist writes a snapshot to path; Load replaces the in-memory
	// state with a previously persisted snapshot. Failures leave the
	// in-memory index untouched.
	Persist(path string) error
	Load(path string) error

	Stats() domain.IndexStats
}
