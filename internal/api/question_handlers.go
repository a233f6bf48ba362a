// Package api provides HTTP handlers for the Question Bank API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dataforaction/questionbank/internal/dedup"
	"github.com/dataforaction/questionbank/internal/embedding"
	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/question"
	"github.com/dataforaction/questionbank/internal/ranking"
)

// IndexWriter is implemented by similarity indexes that need explicit inserts
// (the in-memory index). The Postgres index reads the questions table
// directly, so it does not implement this.
type IndexWriter interface {
	Add(itemID string, embedding []float32)
}

// QuestionHandlers holds dependencies for question-related HTTP handlers.
type QuestionHandlers struct {
	repo        question.Repository
	provider    embedding.Provider
	matcher     *dedup.Matcher
	indexWriter IndexWriter // optional
	ranks       ranking.Store
}

// NewQuestionHandlers creates a new QuestionHandlers instance.
// indexWriter may be nil when the similarity index is backed by the database.
func NewQuestionHandlers(
	repo question.Repository,
	provider embedding.Provider,
	matcher *dedup.Matcher,
	indexWriter IndexWriter,
	ranks ranking.Store,
) *QuestionHandlers {
	return &QuestionHandlers{
		repo:        repo,
		provider:    provider,
		matcher:     matcher,
		indexWriter: indexWriter,
		ranks:       ranks,
	}
}

// SubmitQuestionRequest represents the request body for submitting a question.
type SubmitQuestionRequest struct {
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

// SimilarQuestion is one similarity match in a response.
type SimilarQuestion struct {
	ID       string  `json:"id"`
	Content  string  `json:"content,omitempty"`
	Score    float64 `json:"score"`
	IsPublic bool    `json:"is_public"`
}

// SubmitQuestionResponse represents the response for a successful submission.
type SubmitQuestionResponse struct {
	Question *question.Question `json:"question"`
	Similar  []SimilarQuestion  `json:"similar"`
}

// SubmitQuestion creates a question: it validates content, generates the
// embedding and category, surfaces near-duplicates visible to the submitter,
// and seeds a baseline ranking record.
// POST /questions
func (h *QuestionHandlers) SubmitQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req SubmitQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	content, err := question.ValidateContent(req.Content)
	if err != nil {
		code := ErrCodeValidation
		switch {
		case errors.Is(err, question.ErrEmptyContent):
			code = ErrCodeEmptyContent
		case errors.Is(err, question.ErrContentTooLong):
			code = ErrCodeContentTooLong
		}
		ctx = middleware.SetErrorCode(ctx, code)
		WriteError(w, ctx, StatusCodeMapping(code), code, err.Error())
		return
	}

	// Embedding failure is a hard error: without a vector the question can
	// be neither deduplicated nor ranked against its peers.
	result, err := h.provider.Embed(ctx, content)
	if err != nil {
		slog.ErrorContext(ctx, "embedding generation failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeEmbeddingUnavailable)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeEmbeddingUnavailable,
			"embedding generation failed, question not accepted")
		return
	}

	orgID := middleware.GetOrganizationID(ctx)
	scope := dedup.PublicScope()
	rankScope := ranking.GlobalScope
	if orgID != "" {
		scope = dedup.OrganizationScope(orgID)
		rankScope = orgID
	}

	matches, err := h.matcher.FindSimilar(ctx, result.Embedding, scope, dedup.SubmissionThreshold, dedup.DefaultLimit)
	if err != nil {
		slog.ErrorContext(ctx, "similarity search failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "similarity search failed")
		return
	}

	q := &question.Question{
		ID:          uuid.New().String(),
		Content:     content,
		Category:    result.Category,
		IsPublic:    req.IsPublic,
		Embedding:   result.Embedding,
		SubmitterID: userID,
	}
	if orgID != "" {
		q.OrganizationID = &orgID
	}

	if err := h.repo.Insert(ctx, q); err != nil {
		slog.ErrorContext(ctx, "failed to insert question", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to store question")
		return
	}
	if orgID != "" {
		if err := h.repo.AssociateOrganization(ctx, q.ID, orgID); err != nil {
			slog.ErrorContext(ctx, "failed to associate question with organization",
				"question_id", q.ID, "organization_id", orgID, "error", err)
		}
	}

	if h.indexWriter != nil {
		h.indexWriter.Add(q.ID, q.Embedding)
	}

	// Seed the baseline ranking record so the question can enter sessions
	if _, err := h.ranks.Ensure(ctx, q.ID, rankScope); err != nil {
		slog.ErrorContext(ctx, "failed to seed ranking record", "question_id", q.ID, "error", err)
	}

	WriteJSON(w, ctx, http.StatusCreated, SubmitQuestionResponse{
		Question: q,
		Similar:  toSimilarQuestions(matches),
	})
}

// SimilarQuestionsResponse represents the response for a similarity lookup.
type SimilarQuestionsResponse struct {
	QuestionID string            `json:"question_id"`
	Similar    []SimilarQuestion `json:"similar"`
}

// SimilarQuestions returns questions related to an existing one, filtered by
// the caller's visibility. Uses the lower "related" threshold.
// GET /questions/{id}/similar
func (h *QuestionHandlers) SimilarQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	questionID := r.PathValue("id")
	q, err := h.repo.GetByID(ctx, questionID)
	if errors.Is(err, question.ErrQuestionNotFound) {
		ctx = middleware.SetErrorCode(ctx, ErrCodeQuestionNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeQuestionNotFound, "question not found")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load question", "question_id", questionID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load question")
		return
	}

	orgID := middleware.GetOrganizationID(ctx)
	scope := dedup.PublicScope()
	if orgID != "" {
		scope = dedup.OrganizationScope(orgID)
	}

	matches, err := h.matcher.FindSimilar(ctx, q.Embedding, scope, dedup.RelatedThreshold, dedup.DefaultLimit)
	if err != nil {
		slog.ErrorContext(ctx, "similarity search failed", "question_id", questionID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "similarity search failed")
		return
	}

	// The question itself is its own best match; drop it
	similar := make([]SimilarQuestion, 0, len(matches))
	for _, m := range matches {
		if m.ItemID == q.ID {
			continue
		}
		similar = append(similar, h.enrich(r, m))
	}

	WriteJSON(w, ctx, http.StatusOK, SimilarQuestionsResponse{
		QuestionID: q.ID,
		Similar:    similar,
	})
}

func toSimilarQuestions(matches []dedup.Candidate) []SimilarQuestion {
	similar := make([]SimilarQuestion, 0, len(matches))
	for _, m := range matches {
		similar = append(similar, SimilarQuestion{
			ID:       m.ItemID,
			Score:    m.Score,
			IsPublic: m.IsPublic,
		})
	}
	return similar
}

// enrich attaches the matched question's content when it is still loadable.
func (h *QuestionHandlers) enrich(r *http.Request, m dedup.Candidate) SimilarQuestion {
	sq := SimilarQuestion{
		ID:       m.ItemID,
		Score:    m.Score,
		IsPublic: m.IsPublic,
	}
	if q, err := h.repo.GetByID(r.Context(), m.ItemID); err == nil {
		sq.Content = q.Content
	}
	return sq
}
