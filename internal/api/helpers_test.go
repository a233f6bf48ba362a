package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dataforaction/questionbank/internal/embedding"
	"github.com/dataforaction/questionbank/internal/middleware"
)

// stubProvider returns a canned embedding result or error.
type stubProvider struct {
	result *embedding.Result
	err    error
}

func (p *stubProvider) Embed(_ context.Context, _ string) (*embedding.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authedRequest builds a request carrying the identity the auth middleware
// would have attached. An empty userID leaves the request anonymous.
func authedRequest(t *testing.T, method, target string, body any, userID, orgID string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if userID != "" {
		ctx = middleware.SetUserID(ctx, userID)
	}
	if orgID != "" {
		ctx = middleware.SetOrganizationID(ctx, orgID)
	}
	return req.WithContext(ctx)
}

// decodeErrorCode extracts the error code from a standard error response.
func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v (body %q)", err, w.Body.String())
	}
	return errResp.Error.Code
}
