package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tunegate/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByUserID は指定ユーザーのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUserID(ctx context.Context, userID string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM accounts WHERE user_id = $1`,
		userID,
	).Scan(
		&account.ID, &account.UserID, &account.AccessToken, &account.RefreshToken,
		&account.ExpiresAt, &account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}

// UpdateTokens は再ログイン時にトークン一式を更新する。
func (r *PostgresAccountRepo) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
		 WHERE user_id = $1`,
		userID, accessToken, refreshToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}
	return nil
}

// UpdateAccessToken はリフレッシュ成功時にアクセストークンと有効期限のみを更新する。
func (r *PostgresAccountRepo) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresAt int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET access_token = $2, expires_at = $3, updated_at = now()
		 WHERE user_id = $1`,
		userID, accessToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
