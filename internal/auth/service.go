// Package auth はOAuth認証フロー、セッション管理、ルートガードを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tunegate/internal/model"
	"github.com/hitoshi/tunegate/internal/repository"
)

// sessionIDBytes はセッション識別子の乱数長。hexエンコードで128文字になる。
const sessionIDBytes = 64

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 本システムは単一プロバイダー（Spotify）前提だが、テストダブル注入のために抽象化する。
type OAuthProvider interface {
	// GetLoginURL はOAuth認可URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークン一式に交換する。
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	// FetchProfile はアクセストークンでユーザープロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
	// RefreshAccessToken はリフレッシュトークンで新しいアクセストークンを取得する。
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// SessionData はセッションリーダーが返す現在ユーザーの情報。
type SessionData struct {
	User    *model.User
	Account *model.Account // アカウント未作成の場合はnil
}

// Service は認証に関するビジネスロジックを提供する。
// 依存はすべてコンストラクタ注入とし、ネットワーク無しのテストダブルで差し替え可能にする。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	sessionRepo repository.SessionRepository
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		now:         time.Now,
	}
}

// WithClock はテスト用に現在時刻の供給元を差し替える。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetLoginURL はOAuth認可URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コード交換 → プロフィール取得 → identity upsert → セッション発行の順で進み、
// どの段階の失敗も即座にエラーとして返す（リトライしない）。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換
	tokens, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// 2. アクセストークンでプロフィールを取得
	profile, err := s.oauth.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Unix() + tokens.ExpiresIn

	// 3. provider_idで既存ユーザーを検索し、upsertする
	user, err := s.userRepo.FindByProviderID(ctx, profile.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider id: %w", err)
	}

	if user != nil {
		// 既存ユーザー: アカウントのトークンのみ更新（last write wins）
		if err := s.accountRepo.UpdateTokens(ctx, user.ID, tokens.AccessToken, tokens.RefreshToken, expiresAt); err != nil {
			return nil, fmt.Errorf("failed to update account tokens: %w", err)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider_id", profile.ProviderID),
		)
	} else {
		// 新規ユーザー: usersレコードとaccountsレコードを同時に作成
		now := s.now()
		user = &model.User{
			ID:          uuid.New().String(),
			ProviderID:  profile.ProviderID,
			DisplayName: profile.DisplayName,
			Email:       profile.Email,
			Image:       profile.Image,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		account := &model.Account{
			ID:           uuid.New().String(),
			UserID:       user.ID,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.CreateWithAccount(ctx, user, account); err != nil {
			return nil, fmt.Errorf("failed to create user and account: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("provider_id", profile.ProviderID),
		)
	}

	// 4. セッションを発行（既存セッションは識別子を差し替えて上書き）
	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	return session, nil
}

// CurrentSession はセッション識別子から現在のユーザーとアカウントを解決する。
// セッション・ユーザーのいずれかが見つからない場合とストアエラーはどちらも
// 「未認証」として(nil, nil)を返す（fail closed、エラーは表面化させない）。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) *SessionData {
	if sessionID == "" {
		return nil
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return nil
	}
	if session == nil {
		return nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Error("failed to find session user", slog.String("error", err.Error()))
		return nil
	}
	if user == nil {
		return nil
	}

	account, err := s.accountRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		slog.Error("failed to find account", slog.String("error", err.Error()))
		return nil
	}

	return &SessionData{User: user, Account: account}
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteBySessionID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// issueSession はユーザーのセッションを発行する。
// 既存のセッション行があれば識別子を差し替え（1ユーザー1セッション）、
// なければ新規作成する。
func (s *Service) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	existing, err := s.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing session: %w", err)
	}

	now := s.now()

	if existing != nil {
		if err := s.sessionRepo.UpdateSessionID(ctx, existing.ID, sessionID); err != nil {
			return nil, fmt.Errorf("failed to supersede session: %w", err)
		}
		existing.SessionID = sessionID
		existing.UpdatedAt = now
		return existing, nil
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// GenerateSessionID は暗号的に安全な128文字hexのセッション識別子を生成する。
func GenerateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
