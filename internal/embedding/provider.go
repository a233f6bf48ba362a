// Package embedding provides the embedding-generation client used by
// question submission and deduplication.
package embedding

import (
	"context"
	"errors"
)

// ErrNoEmbedding is returned when the provider responds without a vector.
// Callers must treat this as fatal to the dependent flow: submission aborts
// rather than proceeding without a duplicate check.
var ErrNoEmbedding = errors.New("embedding provider returned no vector")

// Result is the provider's response for one question: the embedding vector
// and an inferred category label.
type Result struct {
	Embedding []float32 `json:"embedding"`
	Category  string    `json:"category"`
}

// Provider generates embeddings for question text.
type Provider interface {
	Embed(ctx context.Context, text string) (*Result, error)
}
