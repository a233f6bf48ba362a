package ranking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// PostgresStore implements Store using PostgreSQL. Batch upserts are sent as
// a single multi-row INSERT ... ON CONFLICT statement keyed on the
// (item_id, scope_id) unique constraint, relying on the database's per-call
// atomicity; separate Store calls are intentionally not wrapped in a larger
// transaction (last-write-wins across clients).
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres-backed ranking store.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Ensure returns the record for (itemID, scopeID), creating it at the Elo
// baseline if it does not exist.
func (s *PostgresStore) Ensure(ctx context.Context, itemID, scopeID string) (*Record, error) {
	query := `
		INSERT INTO ranking_records (item_id, scope_id, elo_score, kanban_status, kanban_order, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (item_id, scope_id) DO UPDATE SET item_id = ranking_records.item_id
		RETURNING item_id, scope_id, elo_score, manual_rank, kanban_status, kanban_order, updated_at
	`
	record := &Record{}
	err := s.db.QueryRowContext(ctx, query, itemID, scopeID, BaselineElo, StatusNow).Scan(
		&record.ItemID, &record.ScopeID, &record.EloScore,
		&record.ManualRank, &record.KanbanStatus, &record.KanbanOrder, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure ranking record: %w", err)
	}
	return record, nil
}

// Get retrieves a record, returning ErrRecordNotFound if absent.
func (s *PostgresStore) Get(ctx context.Context, itemID, scopeID string) (*Record, error) {
	query := `
		SELECT item_id, scope_id, elo_score, manual_rank, kanban_status, kanban_order, updated_at
		FROM ranking_records
		WHERE item_id = $1 AND scope_id = $2
	`
	record := &Record{}
	err := s.db.QueryRowContext(ctx, query, itemID, scopeID).Scan(
		&record.ItemID, &record.ScopeID, &record.EloScore,
		&record.ManualRank, &record.KanbanStatus, &record.KanbanOrder, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking record: %w", err)
	}
	return record, nil
}

// UpsertElo writes a new Elo score for (itemID, scopeID).
func (s *PostgresStore) UpsertElo(ctx context.Context, itemID, scopeID string, score float64) error {
	query := `
		INSERT INTO ranking_records (item_id, scope_id, elo_score, kanban_status, kanban_order, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (item_id, scope_id)
		DO UPDATE SET elo_score = EXCLUDED.elo_score, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, itemID, scopeID, score, StatusNow); err != nil {
		return fmt.Errorf("failed to upsert elo score: %w", err)
	}
	return nil
}

// ApplyOutcome applies a pairwise outcome through the database's stored
// procedures instead of computing the Elo update client-side, satisfying
// OutcomeApplier. The global scope routes to update_elo_ratings,
// organization scopes to update_organization_elo_ratings. Both procedures
// implement the same Elo update as EloUpdate.
func (s *PostgresStore) ApplyOutcome(ctx context.Context, outcome PairwiseOutcome) error {
	var err error
	if outcome.ScopeID == GlobalScope {
		_, err = s.db.ExecContext(ctx, `SELECT update_elo_ratings($1, $2)`, outcome.WinnerID, outcome.LoserID)
	} else {
		_, err = s.db.ExecContext(ctx, `SELECT update_organization_elo_ratings($1, $2, $3)`,
			outcome.ScopeID, outcome.WinnerID, outcome.LoserID)
	}
	if err != nil {
		return fmt.Errorf("failed to apply elo outcome: %w", err)
	}
	return nil
}

// UpsertManualRanks overwrites manual ranks for a scope in one multi-row upsert.
func (s *PostgresStore) UpsertManualRanks(ctx context.Context, scopeID string, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO ranking_records (item_id, scope_id, elo_score, manual_rank, kanban_status, kanban_order, updated_at)
		VALUES `)
	args := make([]interface{}, 0, len(ranks)*2+1)
	args = append(args, scopeID)
	i := 0
	for itemID, rank := range ranks {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $1, %.1f, $%d, '%s', 0, NOW())", len(args)+1, BaselineElo, len(args)+2, StatusNow)
		args = append(args, itemID, rank)
		i++
	}
	sb.WriteString(`
		ON CONFLICT (item_id, scope_id)
		DO UPDATE SET manual_rank = EXCLUDED.manual_rank, updated_at = NOW()`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert manual ranks: %w", err)
	}

	s.logger.Debug("manual ranks upserted",
		slog.String("scope_id", scopeID),
		slog.Int("count", len(ranks)))
	return nil
}

// UpsertKanban applies a batch of kanban assignments in one multi-row upsert.
func (s *PostgresStore) UpsertKanban(ctx context.Context, scopeID string, updates []KanbanUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO ranking_records (item_id, scope_id, elo_score, kanban_status, kanban_order, updated_at)
		VALUES `)
	args := make([]interface{}, 0, len(updates)*3+1)
	args = append(args, scopeID)
	for i, u := range updates {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $1, %.1f, $%d, $%d, NOW())", len(args)+1, BaselineElo, len(args)+2, len(args)+3)
		args = append(args, u.ItemID, u.Status, u.Order)
	}
	sb.WriteString(`
		ON CONFLICT (item_id, scope_id)
		DO UPDATE SET kanban_status = EXCLUDED.kanban_status, kanban_order = EXCLUDED.kanban_order, updated_at = NOW()`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert kanban assignments: %w", err)
	}

	s.logger.Debug("kanban assignments upserted",
		slog.String("scope_id", scopeID),
		slog.Int("count", len(updates)))
	return nil
}

// ListByElo returns a scope's records ordered by Elo descending.
func (s *PostgresStore) ListByElo(ctx context.Context, scopeID string, limit int) ([]*Record, error) {
	query := `
		SELECT item_id, scope_id, elo_score, manual_rank, kanban_status, kanban_order, updated_at
		FROM ranking_records
		WHERE scope_id = $1
		ORDER BY elo_score DESC, item_id ASC
	`
	args := []interface{}{scopeID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranking records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByManualRank returns a scope's ranked records ordered by rank ascending.
func (s *PostgresStore) ListByManualRank(ctx context.Context, scopeID string) ([]*Record, error) {
	query := `
		SELECT item_id, scope_id, elo_score, manual_rank, kanban_status, kanban_order, updated_at
		FROM ranking_records
		WHERE scope_id = $1 AND manual_rank IS NOT NULL
		ORDER BY manual_rank ASC
	`
	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual ranks: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Board returns a scope's kanban board with columns in order.
func (s *PostgresStore) Board(ctx context.Context, scopeID string) (Board, error) {
	query := `
		SELECT item_id, kanban_status
		FROM ranking_records
		WHERE scope_id = $1
		ORDER BY kanban_status ASC, kanban_order ASC
	`
	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	defer rows.Close()

	board := make(Board)
	for rows.Next() {
		var itemID, status string
		if err := rows.Scan(&itemID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan board row: %w", err)
		}
		board[status] = append(board[status], itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read board rows: %w", err)
	}
	return board, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		record := &Record{}
		if err := rows.Scan(
			&record.ItemID, &record.ScopeID, &record.EloScore,
			&record.ManualRank, &record.KanbanStatus, &record.KanbanOrder, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ranking record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ranking records: %w", err)
	}
	return records, nil
}
