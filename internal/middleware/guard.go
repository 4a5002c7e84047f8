package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/tunegate/internal/auth"
	"github.com/hitoshi/tunegate/internal/metrics"
)

const sessionCookieName = "session_id"

// GuardChecker はルートガード評価のインターフェース。
// auth.Guardの部分集合として定義する。
type GuardChecker interface {
	Check(ctx context.Context, sessionID string) auth.Decision
}

// guardExcludedPaths はガード対象外の固定パス。
var guardExcludedPaths = map[string]struct{}{
	"/favicon.ico": {},
	"/sitemap.xml": {},
	"/robots.txt":  {},
}

// isGuardedPath は保護対象パスかを判定する。
// /me配下のみ保護し、/api配下と静的アセットは対象外。
func isGuardedPath(path string) bool {
	if strings.HasPrefix(path, "/api") {
		return false
	}
	if _, excluded := guardExcludedPaths[path]; excluded {
		return false
	}
	if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/assets/") {
		return false
	}
	return strings.HasPrefix(path, "/me")
}

// NewRouteGuardMiddleware は/me配下へのアクセスをガードするミドルウェアを返す。
// セッションCookieを読み取ってガードを評価し、denyの場合はホームへ302リダイレクトする。
// allowの場合は認証済みユーザーIDをリクエストコンテキストに注入する。
// ガード対象外のパスはそのまま通す。
func NewRouteGuardMiddleware(checker GuardChecker, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isGuardedPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			sessionID := ""
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				sessionID = cookie.Value
			}

			decision := checker.Check(r.Context(), sessionID)

			collector.RecordGuardDecision(string(decision.State), decision.Allow)
			switch decision.State {
			case auth.StateRefreshed:
				collector.RecordRefreshSuccess()
			case auth.StateRefreshFailed:
				collector.RecordRefreshFailure()
			}

			if !decision.Allow {
				// エラーページは出さず、常にホームへ戻す
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			ctx := ContextWithUserID(r.Context(), decision.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
