package store

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"ragengine/internal/domain"
	"ragengine/internal/log"
	"ragengine/internal/port"
)

// VectorIndex is a brute-force cosine-similarity index over in-memory
// entries. The vector dimension is locked in by the first successful
// Add. Writes (Add, Clear, Load) are mutually exclusive; searches run
// concurrently and never observe a partially applied batch.
type VectorIndex struct {
	mu         sync.RWMutex
	dimension  int
	entries    []domain.Entry // insertion order
	generation uint64
	overFetch  int
	logger     log.Logger
}

func NewVectorIndex(overFetchFactor int, logger log.Logger) *VectorIndex {
	if overFetchFactor < 1 {
		overFetchFactor = 1
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &VectorIndex{overFetch: overFetchFactor, logger: logger}
}

// Add appends a batch of entries. The whole batch is validated before
// anything is stored, so a dimension mismatch rejects the batch without
// touching the index. Entries are copied; the caller keeps no aliases.
func (x *VectorIndex) Add(entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
		if dim == 0 {
			return fmt.Errorf("%w: empty vector in entry %q", domain.ErrDimensionMismatch, entries[0].ID)
		}
	}
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %q has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}

	for _, e := range entries {
		x.entries = append(x.entries, copyEntry(e))
	}
	x.dimension = dim
	x.generation++

	x.logger.Debug("entries added", "count", len(entries), "total", len(x.entries))
	return nil
}

// Search returns at most k entries ordered by descending cosine
// similarity, ties broken by insertion order. When a filter is set it
// over-fetches k*factor candidates and doubles the factor until k
// matches survive or the whole index has been scanned once, so it never
// returns fewer matches than exist.
func (x *VectorIndex) Search(query []float32, k int, filter port.SearchFilter) ([]domain.ScoredEntry, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			domain.ErrDimensionMismatch, len(query), x.dimension)
	}

	// Entries start in insertion order, so a stable sort keeps ties in
	// insertion order.
	ranked := make([]domain.ScoredEntry, len(x.entries))
	for i, e := range x.entries {
		ranked[i] = domain.ScoredEntry{Entry: e, Score: cosineSimilarity(query, e.Vector)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	// Results carry copies so callers cannot reach back into the
	// index's own vectors or metadata.
	if len(filter) == 0 {
		if k > len(ranked) {
			k = len(ranked)
		}
		out := make([]domain.ScoredEntry, k)
		for i, r := range ranked[:k] {
			out[i] = domain.ScoredEntry{Entry: copyEntry(r.Entry), Score: r.Score}
		}
		return out, nil
	}

	for fetch := k * x.overFetch; ; fetch *= 2 {
		limit := fetch
		if limit > len(ranked) {
			limit = len(ranked)
		}

		matched := make([]domain.ScoredEntry, 0, k)
		for _, r := range ranked[:limit] {
			if Matches(r.Entry.Metadata, filter) {
				matched = append(matched, domain.ScoredEntry{Entry: copyEntry(r.Entry), Score: r.Score})
				if len(matched) == k {
					return matched, nil
				}
			}
		}
		if limit == len(ranked) {
			return matched, nil
		}
	}
}

// Clear removes all entries but keeps the configured dimension.
func (x *VectorIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	x.generation++
	x.logger.Debug("index cleared")
}

func (x *VectorIndex) Stats() domain.IndexStats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return domain.IndexStats{
		Entries:    len(x.entries),
		Dimension:  x.dimension,
		Generation: x.generation,
	}
}

func copyEntry(e domain.Entry) domain.Entry {
	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)
	meta := make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		meta[k] = v
	}
	return domain.Entry{ID: e.ID, Vector: vec, Text: e.Text, Metadata: meta}
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
