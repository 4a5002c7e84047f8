package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tunegate/internal/metrics"
	"github.com/hitoshi/tunegate/internal/middleware"
	"github.com/hitoshi/tunegate/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	GuardChecker      middleware.GuardChecker
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	// メトリクス
	Collector      metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー情報
	UserFinder         UserFinder
	ImageGuard         security.ImageGuardService
	AvatarFetchTimeout time.Duration
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → StatusMetrics → Logging → CORS → RouteGuard
//
// RouteGuardは/me配下にのみ効き、それ以外のパスは素通りする。
// /api/me配下は別途 Session → RateLimit のチェーンで保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewStatusMetricsMiddleware(deps.Collector.RecordHTTPStatus))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRouteGuardMiddleware(deps.GuardChecker, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Collector)
	meHandler := NewMeHandler(deps.UserFinder, deps.ImageGuard, deps.AvatarFetchTimeout)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 認証ルート（OAuthフロー）
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なAPIルート ---
	// ミドルウェアスタック: Session → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api/me", func(r chi.Router) {
			r.Get("/", meHandler.Me)
			r.Get("/avatar", meHandler.Avatar)
		})
	})

	// --- ガード対象の保護ページ ---
	// アクセス可否はRouteGuardミドルウェアが先に評価している
	r.Get("/me", meHandler.Page)
	r.Get("/me/*", meHandler.Page)

	return r
}
