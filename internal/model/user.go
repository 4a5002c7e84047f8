// Package model はドメインモデルを定義する。
package model

import "time"

// User はSpotifyアカウントに紐付くローカルユーザーを表す。
// provider_idごとに1回だけ作成され、本システムからは削除されない。
type User struct {
	ID          string
	ProviderID  string
	DisplayName string
	Email       string
	Image       string // プロフィール画像URL。未設定の場合は空文字列。
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Account はユーザーのOAuthトークンを保持する。
// 1ユーザーにつき最大1レコード（upsertセマンティクス）。
type Account struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string
	// ExpiresAt はアクセストークンの有効期限（エポック秒）。
	// セッション自体の有効期限ではない。
	ExpiresAt int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// SessionIDはCookieに保存される128文字のhex値。
// サーバー側に独立した有効期限は持たず、7日間のCookie期限か
// 再ログインによる上書き（supersede）で失効する。
type Session struct {
	ID        string
	SessionID string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
