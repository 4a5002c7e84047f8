package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/tunegate/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, session_id, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.SessionID, session.UserID, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindBySessionID はCookie由来のsession_idでセッションを検索する。
// 見つからない場合はnilを返す。セッション行自体に有効期限は無い。
func (r *PostgresSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, session_id, user_id, created_at, updated_at
		 FROM sessions WHERE session_id = $1`, sessionID)
}

// FindByUserID は指定ユーザーのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByUserID(ctx context.Context, userID string) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, session_id, user_id, created_at, updated_at
		 FROM sessions WHERE user_id = $1`, userID)
}

func (r *PostgresSessionRepo) findOne(ctx context.Context, query, arg string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&session.ID, &session.SessionID, &session.UserID,
		&session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// UpdateSessionID は既存セッション行の識別子を差し替える（supersede）。
func (r *PostgresSessionRepo) UpdateSessionID(ctx context.Context, id, newSessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET session_id = $2, updated_at = now() WHERE id = $1`,
		id, newSessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session id: %w", err)
	}
	return nil
}

// DeleteBySessionID は指定識別子のセッションを削除する。
func (r *PostgresSessionRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUpdatedBefore はcutoffより前に最終更新されたセッションを削除し、削除件数を返す。
// 7日間のCookie期限を過ぎたセッション行はクライアントから提示され得ないため、
// 認証結果に影響を与えずに削除できる。
func (r *PostgresSessionRepo) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
