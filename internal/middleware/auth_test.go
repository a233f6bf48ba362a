package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dataforaction/questionbank/internal/auth"
)

const authTestSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestAuthenticate_ValidToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.GenerateAccessToken("user-1", "org-1")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotUser, gotOrg string
	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotOrg = GetOrganizationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/kanban", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotUser != "user-1" {
		t.Errorf("user ID = %q, want user-1", gotUser)
	}
	if gotOrg != "org-1" {
		t.Errorf("organization ID = %q, want org-1", gotOrg)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/kanban", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("expected WWW-Authenticate: Bearer header")
	}
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	for _, header := range []string{"Basic abc123", "Bearer", "justatoken"} {
		req := httptest.NewRequest(http.MethodGet, "/kanban", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rr.Code)
		}
	}
}

func TestAuthenticate_RefreshTokenRejected(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/kanban", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for refresh token on API endpoint", rr.Code)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	other := auth.NewJWTService("some-other-secret-entirely-9999")
	token, err := other.GenerateAccessToken("user-1", "org-1")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/kanban", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}
