package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/tunegate/internal/model"
)

const (
	defaultSpotifyAuthURL    = "https://accounts.spotify.com/authorize"
	defaultSpotifyTokenURL   = "https://accounts.spotify.com/api/token"
	defaultSpotifyProfileURL = "https://api.spotify.com/v1/me"

	defaultProviderTimeout = 10 * time.Second
)

// SpotifyOAuthConfig はSpotify OAuthプロバイダーの設定。
type SpotifyOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string

	// プロバイダー呼び出しのHTTPタイムアウト。ゼロ値の場合は10秒。
	Timeout time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

// SpotifyOAuthProvider はSpotify OAuth 2.0による認証を提供する。
type SpotifyOAuthProvider struct {
	config SpotifyOAuthConfig
	client *http.Client
}

// NewSpotifyOAuthProvider はSpotifyOAuthProviderを生成する。
func NewSpotifyOAuthProvider(config SpotifyOAuthConfig) *SpotifyOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultSpotifyAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultSpotifyTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultSpotifyProfileURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultProviderTimeout
	}
	return &SpotifyOAuthProvider{
		config: config,
		// プロバイダー呼び出しには必ずタイムアウトを課す。
		// ハングしたトークンエンドポイントがリクエストを無期限に塞がないようにする。
		client: &http.Client{Timeout: config.Timeout},
	}
}

// TokenSet はトークンエンドポイントのレスポンスを表す。
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile はプロフィールエンドポイントから取得したユーザー情報を表す。
type Profile struct {
	ProviderID  string
	DisplayName string
	Email       string
	Image       string // imagesリストの先頭URL。無い場合は空文字列。
}

// spotifyProfileResponse はSpotifyの/v1/meレスポンス。
type spotifyProfileResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// GetLoginURL はSpotifyの認可URLを生成する。
func (p *SpotifyOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":             {p.config.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {p.config.RedirectURI},
		"scope":                 {p.config.Scopes},
		"code_challenge_method": {"S256"},
		"state":                 {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// ExchangeCode は認可コードをトークン一式に交換する。
// 非2xxレスポンスまたはaccess_token欠落はエラー（リトライしない）。
func (p *SpotifyOAuthProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURI},
	}

	tokens, err := p.postTokenEndpoint(ctx, data)
	if err != nil {
		return nil, err
	}

	if tokens.AccessToken == "" {
		return nil, model.NewMissingAccessTokenError()
	}

	return tokens, nil
}

// RefreshAccessToken はリフレッシュトークンで新しいアクセストークンを取得する。
// 失敗時はエラーを返すのみで、呼び出し側は「続行不可」として扱う（リトライしない）。
func (p *SpotifyOAuthProvider) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
	}

	tokens, err := p.postTokenEndpoint(ctx, data)
	if err != nil {
		return nil, err
	}

	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in refresh response")
	}

	return tokens, nil
}

// postTokenEndpoint はトークンエンドポイントへのフォームPOSTを実行する。
// 失敗レスポンスの生ボディはエラーコンテキストとして保持する。
func (p *SpotifyOAuthProvider) postTokenEndpoint(ctx context.Context, data url.Values) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, model.NewTokenExchangeError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewTokenExchangeError(fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	tokens := &TokenSet{}
	if err := json.Unmarshal(body, tokens); err != nil {
		return nil, model.NewTokenExchangeError(fmt.Sprintf("malformed token response: %s", string(body)))
	}

	return tokens, nil
}

// FetchProfile はアクセストークンで認証ユーザーのプロフィールを取得する。
// 非2xxレスポンスまたはemail欠落はエラー。
func (p *SpotifyOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, model.NewProfileFetchError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewProfileFetchError(fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var profile spotifyProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, model.NewProfileFetchError(fmt.Sprintf("malformed profile response: %s", string(body)))
	}

	if profile.Email == "" {
		return nil, model.NewMissingEmailError()
	}

	image := ""
	if len(profile.Images) > 0 {
		image = profile.Images[0].URL
	}

	return &Profile{
		ProviderID:  profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Image:       image,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*SpotifyOAuthProvider)(nil)
