package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dataforaction/questionbank/internal/billing"
	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/ranking"
)

// RankingHandlers holds dependencies for ranking-session HTTP handlers.
type RankingHandlers struct {
	source  ranking.CandidateSource
	store   ranking.Store
	cfg     ranking.Config
	gate    *billing.Gate
	metrics *ranking.Metrics // optional
}

// NewRankingHandlers creates a new RankingHandlers instance.
// metrics may be nil when metrics are disabled.
func NewRankingHandlers(
	source ranking.CandidateSource,
	store ranking.Store,
	cfg ranking.Config,
	gate *billing.Gate,
	metrics *ranking.Metrics,
) *RankingHandlers {
	return &RankingHandlers{
		source:  source,
		store:   store,
		cfg:     cfg,
		gate:    gate,
		metrics: metrics,
	}
}

// StartSessionRequest represents the request body for starting a session.
type StartSessionRequest struct {
	Mode string `json:"mode"`
}

// StartSessionResponse carries the sampled candidates the caller will order.
type StartSessionResponse struct {
	ScopeID    string              `json:"scope_id"`
	Mode       string              `json:"mode"`
	Candidates []ranking.Candidate `json:"candidates"`
}

// StartSession draws a shuffled candidate sample for the caller's scope.
// Organization scopes require an entitled subscription.
// POST /rankings/session
func (h *RankingHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	mode, ok := parseMode(req.Mode)
	if !ok {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidMode)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidMode, "mode must be \"elo\" or \"manual\"")
		return
	}

	scopeID, allowed := h.resolveScope(w, r)
	if !allowed {
		return
	}

	session := ranking.NewSession(h.source, h.store, h.cfg, scopeID, mode)
	if err := session.Load(ctx); err != nil {
		if errors.Is(err, ranking.ErrEmptySession) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeEmptySession)
			WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeEmptySession,
				"no candidates available in this scope")
			return
		}
		slog.ErrorContext(ctx, "failed to load ranking session", "scope_id", scopeID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load candidates")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionStarted(mode)
	}

	WriteJSON(w, ctx, http.StatusOK, StartSessionResponse{
		ScopeID:    scopeID,
		Mode:       string(mode),
		Candidates: session.Order(),
	})
}

// SubmitSessionRequest carries the caller's final ordering, best first.
type SubmitSessionRequest struct {
	Mode       string   `json:"mode"`
	OrderedIDs []string `json:"ordered_ids"`
}

// SubmitSessionResponse acknowledges a persisted session outcome.
type SubmitSessionResponse struct {
	ScopeID string `json:"scope_id"`
	Mode    string `json:"mode"`
	State   string `json:"state"`
}

// SubmitSession persists a final ordering: Elo updates for pairwise mode, a
// dense manual resequence otherwise.
// POST /rankings/session/submit
func (h *RankingHandlers) SubmitSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req SubmitSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	mode, ok := parseMode(req.Mode)
	if !ok {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidMode)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidMode, "mode must be \"elo\" or \"manual\"")
		return
	}
	if len(req.OrderedIDs) == 0 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeEmptySession)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeEmptySession, "ordered_ids is empty")
		return
	}

	scopeID, allowed := h.resolveScope(w, r)
	if !allowed {
		return
	}

	start := time.Now()
	session := ranking.Resume(h.store, h.cfg, scopeID, mode, req.OrderedIDs)
	if err := session.Submit(ctx); err != nil {
		if h.metrics != nil {
			h.metrics.RecordSessionFailed(mode)
		}
		slog.ErrorContext(ctx, "failed to submit ranking session",
			"scope_id", scopeID, "mode", mode, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to persist ranking")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionCompleted(mode)
		h.metrics.ObserveSubmitDuration(mode, time.Since(start).Seconds())
		if mode == ranking.ModeElo {
			n := len(req.OrderedIDs)
			h.metrics.RecordPairwiseUpdates(n * (n - 1) / 2)
		} else {
			h.metrics.RecordManualResequence()
		}
	}

	WriteJSON(w, ctx, http.StatusOK, SubmitSessionResponse{
		ScopeID: scopeID,
		Mode:    string(mode),
		State:   string(session.State()),
	})
}

// ManualRanksRequest carries a full manual ordering, best first.
type ManualRanksRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

// ManualRanksResponse returns the dense ranks that were written.
type ManualRanksResponse struct {
	ScopeID string         `json:"scope_id"`
	Ranks   map[string]int `json:"ranks"`
}

// UpsertManualRanks writes dense 1..N manual ranks for the caller's scope in
// one batch, replacing prior ranks for the listed items.
// PUT /rankings/manual
func (h *RankingHandlers) UpsertManualRanks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req ManualRanksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if len(req.OrderedIDs) == 0 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeEmptySession)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeEmptySession, "ordered_ids is empty")
		return
	}

	scopeID, allowed := h.resolveScope(w, r)
	if !allowed {
		return
	}

	ranks := ranking.Resequence(req.OrderedIDs)
	if err := h.store.UpsertManualRanks(ctx, scopeID, ranks); err != nil {
		slog.ErrorContext(ctx, "failed to upsert manual ranks", "scope_id", scopeID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to persist ranks")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordManualResequence()
	}

	WriteJSON(w, ctx, http.StatusOK, ManualRanksResponse{ScopeID: scopeID, Ranks: ranks})
}

// resolveScope picks the ranking scope from the caller's organization claim
// and enforces the subscription gate for organization scopes. It writes the
// error response itself when the caller is not allowed.
func (h *RankingHandlers) resolveScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()

	orgID := middleware.GetOrganizationID(ctx)
	if orgID == "" {
		return ranking.GlobalScope, true
	}

	if h.gate != nil {
		allowed, err := h.gate.Allow(ctx, orgID)
		if err != nil {
			slog.ErrorContext(ctx, "subscription check failed", "organization_id", orgID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "subscription check failed")
			return "", false
		}
		if !allowed {
			ctx = middleware.SetErrorCode(ctx, ErrCodeSubscriptionRequired)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeSubscriptionRequired,
				"an active subscription is required for organization ranking")
			return "", false
		}
	}
	return orgID, true
}

// parseMode maps a request mode string to a session mode. Empty defaults to
// pairwise Elo.
func parseMode(s string) (ranking.Mode, bool) {
	switch s {
	case "", string(ranking.ModeElo):
		return ranking.ModeElo, true
	case string(ranking.ModeManual):
		return ranking.ModeManual, true
	default:
		return "", false
	}
}
