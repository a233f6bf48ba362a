package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dataforaction/questionbank/internal/question"
)

// Scope is the visibility scope of a similarity query: public pool or a
// single organization's pool.
type Scope struct {
	Public         bool
	OrganizationID string
}

// PublicScope queries against the public pool.
func PublicScope() Scope {
	return Scope{Public: true}
}

// OrganizationScope queries against one organization's pool.
func OrganizationScope(orgID string) Scope {
	return Scope{OrganizationID: orgID}
}

// Candidate is a similarity result that passed the visibility filter.
// Lifecycle: created per query, presented to the caller for a merge-or-insert
// decision, then discarded.
type Candidate struct {
	ItemID   string  `json:"item_id"`
	Score    float64 `json:"score"`
	IsPublic bool    `json:"is_public"`
}

// VisibilityChecker answers the two visibility questions the filter needs.
// question.Repository satisfies it.
type VisibilityChecker interface {
	IsPublic(ctx context.Context, itemID string) (bool, error)
	AssociatedWithOrganization(ctx context.Context, itemID, orgID string) (bool, error)
}

// Matcher finds existing questions similar to a new submission, restricted
// to what the submitter may see: public submissions match only public
// questions, organization submissions match only questions associated with
// that organization (directly or through the join table). Out-of-scope hits
// are dropped entirely, never merely deprioritized.
type Matcher struct {
	index      Index
	visibility VisibilityChecker
}

// NewMatcher creates a matcher over the given index and visibility source.
func NewMatcher(index Index, visibility VisibilityChecker) *Matcher {
	return &Matcher{index: index, visibility: visibility}
}

// FindSimilar queries the index, applies the visibility filter, and returns
// at most MaxResults candidates ordered by similarity descending. The index
// failing, or the embedding being absent, fails the whole operation: callers
// must abort submission rather than proceed without a duplicate check.
func (m *Matcher) FindSimilar(ctx context.Context, embedding []float32, scope Scope, threshold float64, limit int) ([]Candidate, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches, err := m.index.Search(ctx, embedding, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		visible, isPublic, err := m.checkVisibility(ctx, match.ItemID, scope)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		candidates = append(candidates, Candidate{
			ItemID:   match.ItemID,
			Score:    match.Score,
			IsPublic: isPublic,
		})
		if len(candidates) == MaxResults {
			break
		}
	}
	return candidates, nil
}

func (m *Matcher) checkVisibility(ctx context.Context, itemID string, scope Scope) (visible, isPublic bool, err error) {
	isPublic, err = m.visibility.IsPublic(ctx, itemID)
	if err != nil {
		// An index hit for a question that has since been deleted is dropped.
		if errors.Is(err, question.ErrQuestionNotFound) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("visibility check failed: %w", err)
	}

	if scope.Public {
		return isPublic, isPublic, nil
	}

	associated, err := m.visibility.AssociatedWithOrganization(ctx, itemID, scope.OrganizationID)
	if err != nil {
		return false, false, fmt.Errorf("association check failed: %w", err)
	}
	return associated, isPublic, nil
}
