package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dataforaction/questionbank/internal/question"
)

// Similarity search functions defined in the database. Both take
// (query_embedding, match_threshold, match_count) and return
// (id, similarity) rows; match_questions serves the submission flow,
// finds_similar_questions the related-questions view.
const (
	FnMatchQuestions        = "match_questions"
	FnFindsSimilarQuestions = "finds_similar_questions"
)

// PostgresIndex implements Index by delegating nearest-neighbor search to a
// pgvector-backed database function.
type PostgresIndex struct {
	db     *sql.DB
	fn     string
	logger *slog.Logger
}

// NewPostgresIndex creates an index over the named database function,
// typically FnMatchQuestions or FnFindsSimilarQuestions.
func NewPostgresIndex(db *sql.DB, fn string, logger *slog.Logger) *PostgresIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresIndex{db: db, fn: fn, logger: logger}
}

// Search invokes the database function and returns its matches, which arrive
// already ordered by similarity descending.
func (idx *PostgresIndex) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	query := fmt.Sprintf(`SELECT id, similarity FROM %s($1::vector, $2, $3)`, idx.fn)
	rows, err := idx.db.QueryContext(ctx, query, question.VectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search via %s failed: %w", idx.fn, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ItemID, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan similarity row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read similarity rows: %w", err)
	}

	idx.logger.Debug("similarity search completed",
		slog.String("function", idx.fn),
		slog.Int("matches", len(matches)))
	return matches, nil
}
