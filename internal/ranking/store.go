package ranking

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists ranking records keyed by (item_id, scope_id). Stores own no
// business rules; callers compute the new state (Elo scores, dense ranks,
// kanban orders) and stores apply it atomically per call. Batch methods are
// a single upsert from the caller's perspective, but separate calls are not
// wrapped in any larger transaction.
type Store interface {
	// Ensure returns the record for (itemID, scopeID), creating it at the
	// Elo baseline if it does not exist yet.
	Ensure(ctx context.Context, itemID, scopeID string) (*Record, error)

	// Get retrieves a record, returning ErrRecordNotFound if absent.
	Get(ctx context.Context, itemID, scopeID string) (*Record, error)

	// UpsertElo writes a new Elo score for (itemID, scopeID), creating the
	// record if needed.
	UpsertElo(ctx context.Context, itemID, scopeID string, score float64) error

	// UpsertManualRanks overwrites manual ranks for a scope in one batch.
	// Items in the scope absent from ranks keep their current rank; a full
	// resequence therefore always covers every ranked item.
	UpsertManualRanks(ctx context.Context, scopeID string, ranks map[string]int) error

	// UpsertKanban applies a batch of (item, status, order) assignments for
	// a scope in one call.
	UpsertKanban(ctx context.Context, scopeID string, updates []KanbanUpdate) error

	// ListByElo returns a scope's records ordered by Elo score descending,
	// up to limit (0 means no limit).
	ListByElo(ctx context.Context, scopeID string, limit int) ([]*Record, error)

	// ListByManualRank returns a scope's records with a manual rank set,
	// ordered by rank ascending.
	ListByManualRank(ctx context.Context, scopeID string) ([]*Record, error)

	// Board returns a scope's kanban board with columns in order.
	Board(ctx context.Context, scopeID string) (Board, error)
}

// InMemoryStore implements Store with in-memory storage.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record // "itemID|scopeID" -> record
}

// NewInMemoryStore creates a new in-memory ranking store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*Record),
	}
}

func storeKey(itemID, scopeID string) string {
	return itemID + "|" + scopeID
}

// Ensure returns the record for (itemID, scopeID), creating it at the Elo
// baseline if missing.
func (s *InMemoryStore) Ensure(_ context.Context, itemID, scopeID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[storeKey(itemID, scopeID)]
	if !ok {
		record = NewRecord(itemID, scopeID)
		now := time.Now()
		record.UpdatedAt = &now
		s.records[storeKey(itemID, scopeID)] = record
	}

	return copyRecord(record), nil
}

// Get retrieves a record by (itemID, scopeID).
func (s *InMemoryStore) Get(_ context.Context, itemID, scopeID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[storeKey(itemID, scopeID)]
	if !ok {
		return nil, ErrRecordNotFound
	}

	return copyRecord(record), nil
}

// copyRecord deep-copies a record to prevent external mutation.
func copyRecord(record *Record) *Record {
	copied := *record
	if record.ManualRank != nil {
		rank := *record.ManualRank
		copied.ManualRank = &rank
	}
	if record.UpdatedAt != nil {
		at := *record.UpdatedAt
		copied.UpdatedAt = &at
	}
	return &copied
}

// UpsertElo writes a new Elo score, creating the record if needed.
func (s *InMemoryStore) UpsertElo(_ context.Context, itemID, scopeID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.ensureLocked(itemID, scopeID)
	record.EloScore = score
	now := time.Now()
	record.UpdatedAt = &now
	return nil
}

// UpsertManualRanks overwrites manual ranks for a scope in one batch.
func (s *InMemoryStore) UpsertManualRanks(_ context.Context, scopeID string, ranks map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for itemID, rank := range ranks {
		record := s.ensureLocked(itemID, scopeID)
		r := rank
		record.ManualRank = &r
		record.UpdatedAt = &now
	}
	return nil
}

// UpsertKanban applies a batch of kanban assignments for a scope.
func (s *InMemoryStore) UpsertKanban(_ context.Context, scopeID string, updates []KanbanUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, u := range updates {
		record := s.ensureLocked(u.ItemID, scopeID)
		record.KanbanStatus = u.Status
		record.KanbanOrder = u.Order
		record.UpdatedAt = &now
	}
	return nil
}

// ListByElo returns a scope's records ordered by Elo descending.
func (s *InMemoryStore) ListByElo(_ context.Context, scopeID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.scopeRecordsLocked(scopeID)
	sort.Slice(records, func(i, j int) bool {
		if records[i].EloScore != records[j].EloScore {
			return records[i].EloScore > records[j].EloScore
		}
		return records[i].ItemID < records[j].ItemID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListByManualRank returns a scope's ranked records ordered by rank ascending.
func (s *InMemoryStore) ListByManualRank(_ context.Context, scopeID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Record
	for _, record := range s.scopeRecordsLocked(scopeID) {
		if record.ManualRank != nil {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return *records[i].ManualRank < *records[j].ManualRank
	})
	return records, nil
}

// Board returns a scope's kanban board with columns in order.
func (s *InMemoryStore) Board(_ context.Context, scopeID string) (Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.scopeRecordsLocked(scopeID)
	sort.Slice(records, func(i, j int) bool {
		if records[i].KanbanStatus != records[j].KanbanStatus {
			return records[i].KanbanStatus < records[j].KanbanStatus
		}
		return records[i].KanbanOrder < records[j].KanbanOrder
	})

	board := make(Board)
	for _, record := range records {
		board[record.KanbanStatus] = append(board[record.KanbanStatus], record.ItemID)
	}
	return board, nil
}

// ensureLocked returns the stored record, creating it if missing.
// Caller must hold the write lock.
func (s *InMemoryStore) ensureLocked(itemID, scopeID string) *Record {
	record, ok := s.records[storeKey(itemID, scopeID)]
	if !ok {
		record = NewRecord(itemID, scopeID)
		s.records[storeKey(itemID, scopeID)] = record
	}
	return record
}

// scopeRecordsLocked returns copies of all records in a scope.
// Caller must hold at least the read lock.
func (s *InMemoryStore) scopeRecordsLocked(scopeID string) []*Record {
	var records []*Record
	for _, record := range s.records {
		if record.ScopeID == scopeID {
			records = append(records, copyRecord(record))
		}
	}
	return records
}
