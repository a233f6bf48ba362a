package question

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL. Embeddings are
// stored in a pgvector column; the direct owner lives on the questions row
// and indirect associations in the organization_questions join table.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed question repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Insert stores a new question.
func (r *PostgresRepository) Insert(ctx context.Context, q *Question) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt == nil {
		now := time.Now()
		q.CreatedAt = &now
	}

	query := `
		INSERT INTO questions (id, content, category, is_public, organization_id, embedding, submitter_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.Content, q.Category, q.IsPublic, q.OrganizationID,
		VectorLiteral(q.Embedding), q.SubmitterID, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	r.logger.Debug("question inserted",
		slog.String("question_id", q.ID),
		slog.Bool("is_public", q.IsPublic))
	return nil
}

// GetByID retrieves a question by ID, embedding included: similarity
// lookups read the stored vector back through this path.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Question, error) {
	query := `
		SELECT id, content, category, is_public, organization_id, submitter_id, created_at, embedding::text
		FROM questions
		WHERE id = $1
	`
	q := &Question{}
	var embeddingText string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.Content, &q.Category, &q.IsPublic, &q.OrganizationID, &q.SubmitterID, &q.CreatedAt,
		&embeddingText,
	)
	if err == sql.ErrNoRows {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if q.Embedding, err = ParseVector(embeddingText); err != nil {
		return nil, fmt.Errorf("failed to parse stored embedding: %w", err)
	}
	return q, nil
}

// ListPublic returns public questions, newest first.
func (r *PostgresRepository) ListPublic(ctx context.Context, limit int) ([]*Question, error) {
	query := `
		SELECT id, content, category, is_public, organization_id, submitter_id, created_at
		FROM questions
		WHERE is_public = TRUE
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list public questions: %w", err)
	}
	defer rows.Close()

	var out []*Question
	for rows.Next() {
		q := &Question{}
		if err := rows.Scan(
			&q.ID, &q.Content, &q.Category, &q.IsPublic, &q.OrganizationID, &q.SubmitterID, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return out, nil
}

// AssociateOrganization links a question to an organization indirectly.
// Re-associating is a no-op rather than an error.
func (r *PostgresRepository) AssociateOrganization(ctx context.Context, questionID, orgID string) error {
	query := `
		INSERT INTO organization_questions (organization_id, question_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (organization_id, question_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, orgID, questionID)
	if err != nil {
		// Foreign key violations surface missing questions as not-found.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to associate organization: %w", err)
	}
	return nil
}

// IsPublic reports whether a question belongs to the public pool.
func (r *PostgresRepository) IsPublic(ctx context.Context, questionID string) (bool, error) {
	var isPublic bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_public FROM questions WHERE id = $1`, questionID).Scan(&isPublic)
	if err == sql.ErrNoRows {
		return false, ErrQuestionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check question visibility: %w", err)
	}
	return isPublic, nil
}

// AssociatedWithOrganization checks direct ownership and the indirect join
// in a single query.
func (r *PostgresRepository) AssociatedWithOrganization(ctx context.Context, questionID, orgID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM questions WHERE id = $1 AND organization_id = $2
			UNION
			SELECT 1 FROM organization_questions WHERE question_id = $1 AND organization_id = $2
		)
	`
	var associated bool
	if err := r.db.QueryRowContext(ctx, query, questionID, orgID).Scan(&associated); err != nil {
		return false, fmt.Errorf("failed to check organization association: %w", err)
	}
	return associated, nil
}

// VectorLiteral renders an embedding as a pgvector input literal, e.g.
// "[0.1,0.2,0.3]".
func VectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseVector parses a pgvector text literal back into a float32 slice.
// Inverse of VectorLiteral.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector component %q: %w", part, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}
