package question

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines methods for question persistence and the organization
// association checks the deduplication visibility filter depends on.
type Repository interface {
	// Insert stores a new question, assigning an ID and timestamp if unset.
	Insert(ctx context.Context, q *Question) error

	// GetByID retrieves a question, returning ErrQuestionNotFound if absent.
	GetByID(ctx context.Context, id string) (*Question, error)

	// ListPublic returns public questions, newest first, up to limit
	// (0 means no limit).
	ListPublic(ctx context.Context, limit int) ([]*Question, error)

	// AssociateOrganization links a question to an organization through the
	// indirect join, in addition to any direct ownership.
	AssociateOrganization(ctx context.Context, questionID, orgID string) error

	// IsPublic reports whether a question belongs to the public pool.
	IsPublic(ctx context.Context, questionID string) (bool, error)

	// AssociatedWithOrganization reports whether a question is associated
	// with an organization either directly (owner) or indirectly (join).
	AssociatedWithOrganization(ctx context.Context, questionID, orgID string) (bool, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu           sync.RWMutex
	questions    map[string]*Question
	associations map[string]map[string]bool // questionID -> orgID set
	order        []string                   // insertion order, oldest first
}

// NewInMemoryRepository creates a new in-memory question repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		questions:    make(map[string]*Question),
		associations: make(map[string]map[string]bool),
	}
}

// Insert stores a new question.
func (r *InMemoryRepository) Insert(_ context.Context, q *Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt == nil {
		now := time.Now()
		q.CreatedAt = &now
	}

	copied := copyQuestion(q)
	r.questions[q.ID] = copied
	r.order = append(r.order, q.ID)
	return nil
}

// GetByID retrieves a question by ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return copyQuestion(q), nil
}

// ListPublic returns public questions, newest first.
func (r *InMemoryRepository) ListPublic(_ context.Context, limit int) ([]*Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Question
	for i := len(r.order) - 1; i >= 0; i-- {
		q := r.questions[r.order[i]]
		if !q.IsPublic {
			continue
		}
		out = append(out, copyQuestion(q))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AssociateOrganization links a question to an organization indirectly.
func (r *InMemoryRepository) AssociateOrganization(_ context.Context, questionID, orgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.questions[questionID]; !ok {
		return ErrQuestionNotFound
	}
	if r.associations[questionID] == nil {
		r.associations[questionID] = make(map[string]bool)
	}
	r.associations[questionID][orgID] = true
	return nil
}

// IsPublic reports whether a question belongs to the public pool.
func (r *InMemoryRepository) IsPublic(_ context.Context, questionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[questionID]
	if !ok {
		return false, ErrQuestionNotFound
	}
	return q.IsPublic, nil
}

// AssociatedWithOrganization checks direct ownership and the indirect join.
func (r *InMemoryRepository) AssociatedWithOrganization(_ context.Context, questionID, orgID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[questionID]
	if !ok {
		return false, ErrQuestionNotFound
	}
	if q.OrganizationID != nil && *q.OrganizationID == orgID {
		return true, nil
	}
	return r.associations[questionID][orgID], nil
}

// copyQuestion deep-copies a question to prevent external mutation.
func copyQuestion(q *Question) *Question {
	copied := *q
	if q.OrganizationID != nil {
		org := *q.OrganizationID
		copied.OrganizationID = &org
	}
	if q.CreatedAt != nil {
		at := *q.CreatedAt
		copied.CreatedAt = &at
	}
	copied.Embedding = append([]float32(nil), q.Embedding...)
	return &copied
}
