package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/tunegate/internal/auth"
	"github.com/hitoshi/tunegate/internal/middleware"
	"github.com/hitoshi/tunegate/internal/model"
)

type routerSessionFinder struct {
	sessions map[string]*model.Session
}

func (f *routerSessionFinder) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	return f.sessions[sessionID], nil
}

type routerGuardChecker struct {
	decisions map[string]auth.Decision
}

func (c *routerGuardChecker) Check(ctx context.Context, sessionID string) auth.Decision {
	if d, ok := c.decisions[sessionID]; ok {
		return d
	}
	return auth.Decision{Allow: false, State: auth.StateNoSession}
}

func newTestRouter(t *testing.T, service AuthServiceInterface, sessions map[string]*model.Session, decisions map[string]auth.Decision) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	users := &mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: "Alice", Email: "a@b.com"}, nil
		},
	}

	return NewRouter(&RouterDeps{
		Logger:             slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		SessionFinder:      &routerSessionFinder{sessions: sessions},
		GuardChecker:       &routerGuardChecker{decisions: decisions},
		RateLimiter:        rl,
		CORSAllowedOrigin:  "http://localhost:3000",
		Collector:          nopCollector{},
		AuthService:        service,
		AuthConfig:         AuthHandlerConfig{RedirectURL: "http://localhost:3000/", CookieSecure: false},
		UserFinder:         users,
		ImageGuard:         &mockImageGuard{},
		AvatarFetchTimeout: time.Second,
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_GuardedPageWithoutSession_RedirectsHome(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func TestRouter_GuardedPageWithValidSession_Serves(t *testing.T) {
	decisions := map[string]auth.Decision{
		"sess-1": {Allow: true, State: auth.StateTokenValid, UserID: "user-1"},
	}
	router := newTestRouter(t, &mockAuthService{}, nil, decisions)

	req := httptest.NewRequest(http.MethodGet, "/me/playlists", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["user_id"] != "user-1" {
		t.Errorf("user_id = %q, want user-1", body["user_id"])
	}
}

func TestRouter_APIMeWithoutSession_Returns401(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_APIMeWithSession_ReturnsUser(t *testing.T) {
	sessions := map[string]*model.Session{
		"sess-1": {ID: "row-1", SessionID: "sess-1", UserID: "user-1"},
	}
	router := newTestRouter(t, &mockAuthService{}, sessions, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["id"] != "user-1" {
		t.Errorf("id = %q, want user-1", body["id"])
	}
}

// ログイン → コールバックの一連のフロー。
func TestRouter_LoginCallbackFlow(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "abc" {
				t.Errorf("code = %q, want abc", code)
			}
			return &model.Session{ID: "row-1", SessionID: "issued-session-id", UserID: "user-1"}, nil
		},
	}
	router := newTestRouter(t, service, nil, nil)

	// 1. ログイン開始
	loginReq := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, loginReq)

	if loginRec.Code != http.StatusFound {
		t.Fatalf("login status = %d, want 302", loginRec.Code)
	}
	stateCookie := findCookie(loginRec.Result().Cookies(), "spotify_state")
	if stateCookie == nil {
		t.Fatal("expected spotify_state cookie from login")
	}

	// 2. コールバック
	cbReq := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state="+stateCookie.Value, nil)
	cbReq.AddCookie(&http.Cookie{Name: "spotify_state", Value: stateCookie.Value})
	cbRec := httptest.NewRecorder()
	router.ServeHTTP(cbRec, cbReq)

	if cbRec.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", cbRec.Code)
	}
	if loc := cbRec.Header().Get("Location"); loc != "http://localhost:3000/" {
		t.Errorf("callback Location = %q, want the redirect URL", loc)
	}
	sessionCookie := findCookie(cbRec.Result().Cookies(), "session_id")
	if sessionCookie == nil || sessionCookie.Value != "issued-session-id" {
		t.Errorf("session cookie = %+v, want issued-session-id", sessionCookie)
	}
}

func TestRouter_StaticAssetsBypassGuard(t *testing.T) {
	router := newTestRouter(t, &mockAuthService{}, nil, nil)

	for _, path := range []string{"/favicon.ico", "/robots.txt", "/sitemap.xml"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		// ガードのリダイレクト(302)ではなく404で応答する
		if rec.Code == http.StatusFound {
			t.Errorf("%s: guard should not intercept, got 302", path)
		}
	}
}
