// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/tunegate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderID はprovider_idでユーザーを検索する。見つからない場合はnilを返す。
	FindByProviderID(ctx context.Context, providerID string) (*model.User, error)

	// CreateWithAccount はユーザーとアカウントを同一トランザクションで作成する。
	CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error
}

// AccountRepository はOAuthトークンの永続化インターフェース。
type AccountRepository interface {
	// FindByUserID は指定ユーザーのアカウントを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Account, error)

	// UpdateTokens は再ログイン時にアクセストークン・リフレッシュトークン・
	// 有効期限をまとめて更新する（last write wins）。
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt int64) error

	// UpdateAccessToken はトークンリフレッシュ成功時にアクセストークンと
	// 有効期限のみを更新する。リフレッシュトークンは変更しない。
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresAt int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindBySessionID はCookie由来のsession_idでセッションを検索する。
	// 見つからない場合はnilを返す。
	FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error)

	// FindByUserID は指定ユーザーのセッションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Session, error)

	// UpdateSessionID は既存セッション行の識別子を差し替える（supersede）。
	UpdateSessionID(ctx context.Context, id, newSessionID string) error

	// DeleteBySessionID は指定識別子のセッションを削除する。
	DeleteBySessionID(ctx context.Context, sessionID string) error

	// DeleteUpdatedBefore はcutoffより前に最終更新されたセッションを削除し、
	// 削除件数を返す。クリーンアップワーカー用。
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
