// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageは外部公開APIの互換性維持のため固定文字列（変更禁止）。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（レスポンスボディに出る固定文字列）
	Category string // カテゴリ: auth, validation, provider, system
	Cause    string // 失敗したプロバイダーレスポンスの生ボディ等、診断用コンテキスト
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingCodeOrState = "MISSING_CODE_OR_STATE"
	ErrCodeTokenExchange      = "TOKEN_EXCHANGE_FAILED"
	ErrCodeMissingAccessToken = "MISSING_ACCESS_TOKEN"
	ErrCodeProfileFetch       = "PROFILE_FETCH_FAILED"
	ErrCodeMissingEmail       = "MISSING_EMAIL"
)

// NewMissingCodeOrStateError はcodeまたはstateが欠落している場合のエラーを生成する。
func NewMissingCodeOrStateError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCodeOrState,
		Message:  "No code or state",
		Category: "validation",
	}
}

// NewTokenExchangeError はトークン交換失敗のエラーを生成する。
// causeには失敗したプロバイダーレスポンスの生ボディを渡す。
func NewTokenExchangeError(cause string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchange,
		Message:  "Error fetching token",
		Category: "provider",
		Cause:    cause,
	}
}

// NewMissingAccessTokenError はトークンレスポンスにaccess_tokenが無い場合のエラーを生成する。
func NewMissingAccessTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAccessToken,
		Message:  "Can't get token",
		Category: "provider",
	}
}

// NewProfileFetchError はプロフィール取得失敗のエラーを生成する。
// causeには失敗したプロバイダーレスポンスの生ボディを渡す。
func NewProfileFetchError(cause string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileFetch,
		Message:  "Error fetching user data",
		Category: "provider",
		Cause:    cause,
	}
}

// NewMissingEmailError はプロフィールレスポンスにemailが無い場合のエラーを生成する。
func NewMissingEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingEmail,
		Message:  "Can't get user email",
		Category: "provider",
	}
}
