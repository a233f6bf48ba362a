package ranking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// State is the lifecycle state of a ranking session.
type State string

// Session states. Failed is reachable from Loading and Submitting; Complete
// sessions may re-enter Loading to draw a fresh sample.
const (
	StateLoading    State = "loading"
	StatePresenting State = "presenting"
	StateSubmitting State = "submitting"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Mode selects what a session persists on submit.
type Mode string

const (
	// ModeElo derives pairwise outcomes from the final order and applies
	// sequential Elo updates.
	ModeElo Mode = "elo"

	// ModeManual resequences the final order into dense manual ranks and
	// performs a single batch upsert.
	ModeManual Mode = "manual"
)

// Session errors.
var (
	ErrNotPresenting   = errors.New("session is not presenting")
	ErrIndexOutOfRange = errors.New("reorder index out of range")
	ErrEmptySession    = errors.New("session has no candidates")
)

// Candidate is one item presented for ranking.
type Candidate struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	EloScore float64 `json:"elo_score"`
}

// CandidateSource supplies the candidate pool for a scope. The global flow
// draws from the public question pool; organization flows draw from the
// scope's joined ranking rows.
type CandidateSource interface {
	Candidates(ctx context.Context, scopeID string, limit int) ([]Candidate, error)
}

// OutcomeApplier is an optional Store capability: a store that can apply a
// pairwise outcome in a single call (a stored procedure, for example)
// implements it, and sessions route Elo writes through it instead of the
// read-update-write path. Both paths must compute the same update.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, outcome PairwiseOutcome) error
}

// Session orchestrates one ranking interaction: load a candidate sample,
// present it for reordering, and persist the outcome. A session is owned by
// a single caller and is not safe for concurrent use.
//
// Persistence on submit is sequential and not transactional: a failure
// partway through a pairwise batch leaves earlier updates applied. The
// session reports Failed and the caller is expected to refetch rather than
// retry the failed write.
type Session struct {
	source CandidateSource
	store  Store
	cfg    Config
	scope  string
	mode   Mode

	state      State
	candidates []Candidate
	err        error

	// shuffle is swappable for deterministic tests.
	shuffle func(n int, swap func(i, j int))
}

// NewSession creates a session in the Loading state.
func NewSession(source CandidateSource, store Store, cfg Config, scopeID string, mode Mode) *Session {
	return &Session{
		source:  source,
		store:   store,
		cfg:     cfg,
		scope:   scopeID,
		mode:    mode,
		state:   StateLoading,
		shuffle: rand.Shuffle,
	}
}

// Resume creates a session already in the Presenting state holding the given
// order. Used when the final permutation arrives from a client that loaded
// its sample in an earlier request.
func Resume(store Store, cfg Config, scopeID string, mode Mode, orderedIDs []string) *Session {
	candidates := make([]Candidate, len(orderedIDs))
	for i, id := range orderedIDs {
		candidates[i] = Candidate{ID: id}
	}
	return &Session{
		store:      store,
		cfg:        cfg,
		scope:      scopeID,
		mode:       mode,
		state:      StatePresenting,
		candidates: candidates,
		shuffle:    rand.Shuffle,
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Err returns the error that moved the session to Failed, if any.
func (s *Session) Err() error { return s.err }

// Order returns the current candidate permutation.
func (s *Session) Order() []Candidate {
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Load fetches up to PoolLimit candidates, shuffles them, and keeps the first
// SampleSize as the presented sample. Transitions Loading -> Presenting on
// success, Loading -> Failed on fetch failure. A Complete session may call
// Load again to start a fresh round.
func (s *Session) Load(ctx context.Context) error {
	if s.state != StateLoading && s.state != StateComplete {
		return fmt.Errorf("cannot load from state %q", s.state)
	}
	s.state = StateLoading

	pool, err := s.source.Candidates(ctx, s.scope, s.cfg.PoolLimit)
	if err != nil {
		s.fail(fmt.Errorf("failed to load candidates: %w", err))
		return s.err
	}
	if len(pool) == 0 {
		s.fail(ErrEmptySession)
		return s.err
	}

	s.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > s.cfg.SampleSize {
		pool = pool[:s.cfg.SampleSize]
	}

	s.candidates = pool
	s.state = StatePresenting
	return nil
}

// Reorder moves the candidate at index from to index to. Valid only while
// Presenting; mutates the in-memory permutation only, nothing is persisted.
func (s *Session) Reorder(from, to int) error {
	if s.state != StatePresenting {
		return ErrNotPresenting
	}
	if from < 0 || from >= len(s.candidates) || to < 0 || to >= len(s.candidates) {
		return ErrIndexOutOfRange
	}

	moved := s.candidates[from]
	rest := append(s.candidates[:from:from], s.candidates[from+1:]...)
	s.candidates = append(rest[:to:to], append([]Candidate{moved}, rest[to:]...)...)
	return nil
}

// Submit persists the final permutation. In ModeElo it derives every pairwise
// outcome (rank distance ascending) and applies EloUpdate + store upsert for
// each, sequentially. In ModeManual it resequences once and batch-upserts.
// Transitions Presenting -> Submitting -> Complete, or -> Failed on a write
// error (possibly after some updates were applied).
func (s *Session) Submit(ctx context.Context) error {
	if s.state != StatePresenting {
		return ErrNotPresenting
	}
	if len(s.candidates) == 0 {
		s.fail(ErrEmptySession)
		return s.err
	}
	s.state = StateSubmitting

	orderedIDs := make([]string, len(s.candidates))
	for i, c := range s.candidates {
		orderedIDs[i] = c.ID
	}

	var err error
	switch s.mode {
	case ModeManual:
		err = s.store.UpsertManualRanks(ctx, s.scope, Resequence(orderedIDs))
	default:
		err = s.submitPairwise(ctx, orderedIDs)
	}
	if err != nil {
		s.fail(err)
		return s.err
	}

	s.state = StateComplete
	return nil
}

// submitPairwise applies the derived outcomes one at a time. Stores that
// implement OutcomeApplier get each outcome in a single call; otherwise each
// update reads both current scores, computes the Elo result, and writes both
// sides.
func (s *Session) submitPairwise(ctx context.Context, orderedIDs []string) error {
	if applier, ok := s.store.(OutcomeApplier); ok {
		for _, outcome := range DerivePairs(orderedIDs, s.scope) {
			if err := applier.ApplyOutcome(ctx, outcome); err != nil {
				return fmt.Errorf("failed to apply pairwise outcome: %w", err)
			}
		}
		return nil
	}

	for _, outcome := range DerivePairs(orderedIDs, s.scope) {
		winner, err := s.store.Ensure(ctx, outcome.WinnerID, s.scope)
		if err != nil {
			return fmt.Errorf("failed to load winner record: %w", err)
		}
		loser, err := s.store.Ensure(ctx, outcome.LoserID, s.scope)
		if err != nil {
			return fmt.Errorf("failed to load loser record: %w", err)
		}

		newWinner, newLoser := EloUpdate(winner.EloScore, loser.EloScore, s.cfg.KFactor)
		if err := s.store.UpsertElo(ctx, outcome.WinnerID, s.scope, newWinner); err != nil {
			return fmt.Errorf("failed to persist winner score: %w", err)
		}
		if err := s.store.UpsertElo(ctx, outcome.LoserID, s.scope, newLoser); err != nil {
			return fmt.Errorf("failed to persist loser score: %w", err)
		}
	}
	return nil
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.err = err
}
