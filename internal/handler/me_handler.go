package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tunegate/internal/middleware"
	"github.com/hitoshi/tunegate/internal/model"
	"github.com/hitoshi/tunegate/internal/security"
)

// maxAvatarBytes はアバタープロキシが転送するレスポンスボディの上限。
const maxAvatarBytes = 5 << 20 // 5MiB

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// MeHandler は認証済みユーザー情報のHTTPハンドラー。
type MeHandler struct {
	userFinder UserFinder
	imageGuard security.ImageGuardService
	client     *http.Client
}

// NewMeHandler はMeHandlerを生成する。
// アバター取得用のHTTPクライアントはSSRF防止機能付きで生成する。
func NewMeHandler(userFinder UserFinder, imageGuard security.ImageGuardService, fetchTimeout time.Duration) *MeHandler {
	return &MeHandler{
		userFinder: userFinder,
		imageGuard: imageGuard,
		client:     imageGuard.NewSafeClient(fetchTimeout),
	}
}

// resolveUser はコンテキストのユーザーIDからユーザーを解決する。
func (h *MeHandler) resolveUser(w http.ResponseWriter, r *http.Request) *model.User {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}

	user, err := h.userFinder.FindByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return nil
	}
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	return user
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.resolveUser(w, r)
	if user == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"id":           user.ID,
		"display_name": user.DisplayName,
		"email":        user.Email,
		"image":        user.Image,
	})
}

// Avatar はユーザーのプロバイダー画像をサーバー側で取得して転送する。
// GET /api/me/avatar
// 画像URLはプロバイダー由来の外部入力のため、SSRF防止の検証を通してから取得する。
func (h *MeHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	user := h.resolveUser(w, r)
	if user == nil {
		return
	}

	if user.Image == "" {
		http.Error(w, "no avatar", http.StatusNotFound)
		return
	}

	if err := h.imageGuard.ValidateImageURL(user.Image); err != nil {
		slog.Warn("avatar URL rejected",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "invalid avatar URL", http.StatusBadGateway)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, user.Image, nil)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Warn("avatar fetch failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "failed to fetch avatar", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, "failed to fetch avatar", http.StatusBadGateway)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxAvatarBytes)); err != nil {
		slog.Warn("avatar stream interrupted", slog.String("error", err.Error()))
	}
}

// Page はガード通過後の保護ページ応答を返す。
// GET /me および /me/* （実際の画面はフロントエンド側の責務）
func (h *MeHandler) Page(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		// ガードミドルウェアを通らずに到達することはない
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": userID,
		"path":    r.URL.Path,
	})
}
