package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/ranking"
	"github.com/dataforaction/questionbank/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware; the upgrade
		// itself accepts any origin.
		return true
	},
}

// BoardWebSocketHandlers holds dependencies for board WebSocket handlers.
type BoardWebSocketHandlers struct {
	store       ranking.Store
	broadcaster *realtime.Broadcaster
}

// NewBoardWebSocketHandlers creates a new BoardWebSocketHandlers instance.
func NewBoardWebSocketHandlers(store ranking.Store, broadcaster *realtime.Broadcaster) *BoardWebSocketHandlers {
	return &BoardWebSocketHandlers{store: store, broadcaster: broadcaster}
}

// SubscribeToBoard handles WebSocket connections for real-time board updates.
// The caller receives the current board immediately, then a board_updated
// event after every persisted card move in the scope.
// GET /ws/boards/{scope}
func (h *BoardWebSocketHandlers) SubscribeToBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope := r.PathValue("scope")
	if scope == "global" {
		scope = ranking.GlobalScope
	}

	// Organization boards are only visible to their members
	if scope != ranking.GlobalScope && middleware.GetOrganizationID(ctx) != scope {
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "not a member of this organization")
		return
	}

	board, err := h.store.Board(ctx, scope)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load board for subscription", "scope_id", scope, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load board")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "scope_id", scope, "error", err)
		return
	}

	sub := h.broadcaster.Subscribe(scope, conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to board events",
		"scope_id", scope,
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"scope_id", scope,
			"request_id", requestID,
		)
	}()

	// Send the current board as the first frame so the client does not have
	// to race a REST fetch against the event stream. The subscriber's Send
	// serializes against concurrent broadcasts on the same connection.
	if err := sub.Send(realtime.BoardEvent{
		Type:  realtime.EventBoardUpdated,
		Scope: scope,
		Board: board,
	}); err != nil {
		slog.WarnContext(ctx, "failed to send initial board", "scope_id", scope, "error", err)
		return
	}

	// Read messages only to detect disconnection; clients are not expected
	// to send anything
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly",
					"scope_id", scope, "error", err)
			}
			break
		}
	}
}
