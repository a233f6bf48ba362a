// Package dedup implements embedding-based duplicate detection for question
// submission: a similarity index abstraction, an in-memory cosine index, a
// Postgres/pgvector-backed index, and the visibility filter that scopes
// results to what the submitter is allowed to see.
package dedup

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// Default matcher parameters, mirrored from the submission and detail-view
// flows: 0.8 gates new submissions, 0.6 surfaces related questions.
const (
	SubmissionThreshold = 0.8
	RelatedThreshold    = 0.6
	DefaultLimit        = 10
	MaxResults          = 5
)

// Common errors for deduplication operations.
var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyEmbedding    = errors.New("embedding is empty")
)

// Match is a raw similarity hit from an index, before visibility filtering.
type Match struct {
	ItemID string
	Score  float64
}

// Index performs nearest-neighbor search over question embeddings.
// Implementations return matches at or above threshold, ordered by score
// descending, up to limit.
type Index interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error)
}

// InMemoryIndex is a brute-force cosine similarity index.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewInMemoryIndex creates a new in-memory similarity index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		vectors: make(map[string][]float32),
	}
}

// Add stores an item's embedding, replacing any previous vector.
func (idx *InMemoryIndex) Add(itemID string, embedding []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[itemID] = append([]float32(nil), embedding...)
}

// Remove drops an item from the index.
func (idx *InMemoryIndex) Remove(itemID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, itemID)
}

// Search scans all vectors and returns cosine matches at or above threshold,
// score descending, up to limit.
func (idx *InMemoryIndex) Search(_ context.Context, embedding []float32, threshold float64, limit int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []Match
	for itemID, vector := range idx.vectors {
		score, err := CosineSimilarity(embedding, vector)
		if err != nil {
			return nil, err
		}
		if score >= threshold {
			matches = append(matches, Match{ItemID: itemID, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ItemID < matches[j].ItemID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for zero-magnitude vectors rather than NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
