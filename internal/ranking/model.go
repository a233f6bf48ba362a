package ranking

import (
	"errors"
	"time"
)

// BaselineElo is the initial Elo score for items that have never been compared.
const BaselineElo = 1500.0

// GlobalScope is the scope ID of the public pool. Organization scopes use the
// organization's ID.
const GlobalScope = ""

// Kanban status constants. Every ranking record belongs to exactly one column;
// new records start in StatusNow.
const (
	StatusNow    = "Now"
	StatusNext   = "Next"
	StatusFuture = "Future"
	StatusParked = "Parked"
	StatusDone   = "Done"
)

// Statuses lists the valid kanban columns in display order.
var Statuses = []string{StatusNow, StatusNext, StatusFuture, StatusParked, StatusDone}

// Common errors for ranking operations.
var (
	ErrRecordNotFound  = errors.New("ranking record not found")
	ErrInvalidStatus   = errors.New("invalid kanban status")
	ErrItemNotInColumn = errors.New("item not present in source column")
)

// ValidStatus reports whether s names a known kanban column.
func ValidStatus(s string) bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Record is the mutable ranking state for an item within a scope.
//
// Invariants: within a scope, set manual ranks are unique positive integers
// forming a dense 1..N sequence after a full resequence; within a
// (scope, status) partition, kanban orders are unique and dense from 0.
type Record struct {
	ItemID       string     `json:"item_id"`
	ScopeID      string     `json:"scope_id"`
	EloScore     float64    `json:"elo_score"`
	ManualRank   *int       `json:"manual_rank,omitempty"`
	KanbanStatus string     `json:"kanban_status"`
	KanbanOrder  int        `json:"kanban_order"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// NewRecord returns a record at the Elo baseline in the default column.
func NewRecord(itemID, scopeID string) *Record {
	return &Record{
		ItemID:       itemID,
		ScopeID:      scopeID,
		EloScore:     BaselineElo,
		KanbanStatus: StatusNow,
	}
}

// PairwiseOutcome is a single derived comparison result. Outcomes are
// transient: produced during a ranking session, consumed immediately by the
// Elo update, never persisted.
type PairwiseOutcome struct {
	WinnerID string
	LoserID  string
	ScopeID  string
}
