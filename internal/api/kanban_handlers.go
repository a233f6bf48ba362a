package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/ranking"
	"github.com/dataforaction/questionbank/internal/realtime"
)

// KanbanHandlers holds dependencies for kanban board HTTP handlers.
type KanbanHandlers struct {
	store       ranking.Store
	broadcaster *realtime.Broadcaster // optional
	metrics     *ranking.Metrics      // optional
}

// NewKanbanHandlers creates a new KanbanHandlers instance.
// broadcaster and metrics may be nil.
func NewKanbanHandlers(store ranking.Store, broadcaster *realtime.Broadcaster, metrics *ranking.Metrics) *KanbanHandlers {
	return &KanbanHandlers{
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// kanbanScope picks the board scope from the caller's organization claim.
// Boards are part of the base product, so no subscription gate applies.
func kanbanScope(ctx context.Context) string {
	if orgID := middleware.GetOrganizationID(ctx); orgID != "" {
		return orgID
	}
	return ranking.GlobalScope
}

// BoardResponse is a scope's full board, ordered within each column.
type BoardResponse struct {
	ScopeID string        `json:"scope_id"`
	Board   ranking.Board `json:"board"`
}

// Board returns the caller's kanban board.
// GET /kanban
func (h *KanbanHandlers) Board(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	scopeID := kanbanScope(ctx)
	board, err := h.store.Board(ctx, scopeID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load board", "scope_id", scopeID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load board")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, BoardResponse{ScopeID: scopeID, Board: board})
}

// MoveCardRequest represents the request body for moving a card.
type MoveCardRequest struct {
	ItemID    string `json:"item_id"`
	Source    string `json:"source"`
	Dest      string `json:"dest"`
	DestIndex int    `json:"dest_index"`
}

// MoveCard moves one card between (or within) columns, persists the dense
// reindex of every touched column, and broadcasts the updated board to the
// scope's subscribers.
// POST /kanban/move
func (h *KanbanHandlers) MoveCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req MoveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "item_id is required")
		return
	}

	scopeID := kanbanScope(ctx)
	board, err := h.store.Board(ctx, scopeID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load board", "scope_id", scopeID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load board")
		return
	}

	updates, err := ranking.MoveCard(board, req.ItemID, req.Source, req.Dest, req.DestIndex)
	if err != nil {
		code := ErrCodeValidation
		switch {
		case errors.Is(err, ranking.ErrInvalidStatus):
			code = ErrCodeInvalidStatus
		case errors.Is(err, ranking.ErrItemNotInColumn):
			code = ErrCodeItemNotInColumn
		}
		ctx = middleware.SetErrorCode(ctx, code)
		WriteError(w, ctx, StatusCodeMapping(code), code, err.Error())
		return
	}

	if err := h.store.UpsertKanban(ctx, scopeID, updates); err != nil {
		slog.ErrorContext(ctx, "failed to persist board move",
			"scope_id", scopeID, "item_id", req.ItemID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to persist move")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordKanbanMove()
	}

	// Re-read so subscribers and the caller see the same persisted state
	board, err = h.store.Board(ctx, scopeID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to reload board after move", "scope_id", scopeID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to reload board")
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastBoard(scopeID, board)
	}

	WriteJSON(w, ctx, http.StatusOK, BoardResponse{ScopeID: scopeID, Board: board})
}
