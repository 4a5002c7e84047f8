package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/tunegate/internal/model"
	"github.com/hitoshi/tunegate/internal/repository"
)

// refreshWindowSeconds はリフレッシュ成功時に設定する新しい有効期限の幅。
// now + 3600秒の固定ウィンドウ。
const refreshWindowSeconds = 3600

// GuardState はルートガード評価の到達状態を表す。
// 評価は NoSession から始まり、deny または allow の終端状態で止まる。
type GuardState string

const (
	// StateNoSession はセッションCookieが無い、または識別子がストアに無い状態。
	StateNoSession GuardState = "no_session"
	// StateSessionFound はセッション行が見つかった状態。
	StateSessionFound GuardState = "session_found"
	// StateUserResolved はセッションの所有ユーザーが解決できた状態。
	StateUserResolved GuardState = "user_resolved"
	// StateAccountResolved はユーザーのアカウントが解決できた状態。
	StateAccountResolved GuardState = "account_resolved"
	// StateTokenValid はアクセストークンが有効（または期限未記録）の状態。
	StateTokenValid GuardState = "token_valid"
	// StateTokenExpired はアクセストークンが期限切れの状態。
	StateTokenExpired GuardState = "token_expired"
	// StateRefreshed はリフレッシュに成功し新トークンを永続化した状態。
	StateRefreshed GuardState = "refreshed"
	// StateRefreshFailed はリフレッシュに失敗した状態。
	StateRefreshFailed GuardState = "refresh_failed"
)

// Decision はルートガードの評価結果を表す。
// 判定（allow/deny）と副作用（リダイレクト実行）を分離するため、
// Decision自体はHTTPに一切関与しない。
type Decision struct {
	Allow  bool
	State  GuardState
	UserID string // allow時のみ設定
}

func deny(state GuardState) Decision {
	return Decision{Allow: false, State: state}
}

// TokenRefresher はガードが必要とするトークンリフレッシュ操作のインターフェース。
// OAuthProviderの部分集合。
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// Guard は保護ルートへのアクセス可否を評価する。
// 評価はリクエストごとに毎回実行され、結果はキャッシュされない。
type Guard struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	refresher   TokenRefresher
	now         func() time.Time
}

// NewGuard はGuardを生成する。
func NewGuard(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	refresher TokenRefresher,
) *Guard {
	return &Guard{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		refresher:   refresher,
		now:         time.Now,
	}
}

// WithClock はテスト用に現在時刻の供給元を差し替える。
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// EvaluateExpiry はアカウントのトークン期限を判定する純粋関数。
// 期限が未記録（ゼロ値）の場合は有効として扱う。
func EvaluateExpiry(account *model.Account, now int64) GuardState {
	if account.ExpiresAt == 0 || account.ExpiresAt >= now {
		return StateTokenValid
	}
	return StateTokenExpired
}

// Check はセッション識別子から保護ルートへのアクセス可否を評価する。
// 状態遷移:
//
//	NoSession → SessionFound → UserResolved → AccountResolved
//	  → TokenValid | TokenExpired → Refreshed | RefreshFailed
//
// いずれの欠落・失敗もdeny（呼び出し側がホームへリダイレクト）。
// ストアエラーはログに残した上で未認証として扱う（fail closed）。
func (g *Guard) Check(ctx context.Context, sessionID string) Decision {
	if sessionID == "" {
		return deny(StateNoSession)
	}

	session, err := g.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		slog.Error("guard: session lookup failed", slog.String("error", err.Error()))
		return deny(StateNoSession)
	}
	if session == nil {
		return deny(StateNoSession)
	}

	user, err := g.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Error("guard: user lookup failed", slog.String("error", err.Error()))
		return deny(StateSessionFound)
	}
	if user == nil {
		return deny(StateSessionFound)
	}

	account, err := g.accountRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		slog.Error("guard: account lookup failed", slog.String("error", err.Error()))
		return deny(StateUserResolved)
	}
	if account == nil {
		return deny(StateUserResolved)
	}

	now := g.now().Unix()

	if EvaluateExpiry(account, now) == StateTokenValid {
		return Decision{Allow: true, State: StateTokenValid, UserID: user.ID}
	}

	// 期限切れ: リフレッシュトークンが無ければ続行不可
	if account.RefreshToken == "" {
		return deny(StateTokenExpired)
	}

	tokens, err := g.refresher.RefreshAccessToken(ctx, account.RefreshToken)
	if err != nil {
		slog.Warn("guard: token refresh failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return deny(StateRefreshFailed)
	}

	// 新トークンを固定+3600秒ウィンドウで永続化してから通す
	if err := g.accountRepo.UpdateAccessToken(ctx, user.ID, tokens.AccessToken, now+refreshWindowSeconds); err != nil {
		slog.Error("guard: failed to persist refreshed token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return deny(StateRefreshFailed)
	}

	slog.Info("guard: access token refreshed", slog.String("user_id", user.ID))
	return Decision{Allow: true, State: StateRefreshed, UserID: user.ID}
}
