package question

import (
	"context"
	"errors"

	"github.com/dataforaction/questionbank/internal/ranking"
)

// Source adapts the question repository and ranking store into a
// ranking.CandidateSource. The global flow draws from the public question
// pool; organization flows draw from the scope's existing ranking rows
// joined back to question content.
type Source struct {
	repo  Repository
	ranks ranking.Store
}

// NewSource creates a candidate source over the given repository and store.
func NewSource(repo Repository, ranks ranking.Store) *Source {
	return &Source{repo: repo, ranks: ranks}
}

// Candidates returns up to limit candidates for a scope.
func (s *Source) Candidates(ctx context.Context, scopeID string, limit int) ([]ranking.Candidate, error) {
	if scopeID == ranking.GlobalScope {
		return s.publicCandidates(ctx, limit)
	}
	return s.scopedCandidates(ctx, scopeID, limit)
}

func (s *Source) publicCandidates(ctx context.Context, limit int) ([]ranking.Candidate, error) {
	questions, err := s.repo.ListPublic(ctx, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]ranking.Candidate, 0, len(questions))
	for _, q := range questions {
		score := ranking.BaselineElo
		record, err := s.ranks.Get(ctx, q.ID, ranking.GlobalScope)
		if err == nil {
			score = record.EloScore
		} else if !errors.Is(err, ranking.ErrRecordNotFound) {
			return nil, err
		}
		candidates = append(candidates, ranking.Candidate{
			ID:       q.ID,
			Content:  q.Content,
			EloScore: score,
		})
	}
	return candidates, nil
}

func (s *Source) scopedCandidates(ctx context.Context, scopeID string, limit int) ([]ranking.Candidate, error) {
	records, err := s.ranks.ListByElo(ctx, scopeID, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]ranking.Candidate, 0, len(records))
	for _, record := range records {
		q, err := s.repo.GetByID(ctx, record.ItemID)
		if err != nil {
			if errors.Is(err, ErrQuestionNotFound) {
				// Ranking row for a deleted question; skip it.
				continue
			}
			return nil, err
		}
		candidates = append(candidates, ranking.Candidate{
			ID:       q.ID,
			Content:  q.Content,
			EloScore: record.EloScore,
		})
	}
	return candidates, nil
}
