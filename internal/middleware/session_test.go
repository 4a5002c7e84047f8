package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/tunegate/internal/model"
)

type mockSessionFinder struct {
	findBySessionIDFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockSessionFinder) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	return m.findBySessionIDFn(ctx, sessionID)
}

var _ SessionFinder = (*mockSessionFinder)(nil)

func TestSessionMiddleware_NoCookie_Returns401(t *testing.T) {
	finder := &mockSessionFinder{
		findBySessionIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			t.Error("finder should not be called without a cookie")
			return nil, nil
		},
	}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_SessionNotFound_Returns401(t *testing.T) {
	finder := &mockSessionFinder{
		findBySessionIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, nil
		},
	}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_StoreError_Returns401(t *testing.T) {
	finder := &mockSessionFinder{
		findBySessionIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "any"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	finder := &mockSessionFinder{
		findBySessionIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			if sessionID != "sess-123" {
				t.Errorf("sessionID = %q, want sess-123", sessionID)
			}
			return &model.Session{ID: "row-1", SessionID: sessionID, UserID: "user-1"}, nil
		},
	}

	var gotUserID string
	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-123"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("user ID in context = %q, want user-1", gotUserID)
	}
}

func TestUserIDFromContext_MissingReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user ID")
	}
}
