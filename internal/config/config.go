// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Spotify OAuth
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string
	Scopes              string

	// ログイン完了後のリダイレクト先選択
	// 旧フロントエンド（Next.js）由来の環境変数名をそのまま引き継ぐ。
	NextJSEnv          string
	RedirectURLDev     string
	RedirectURLPreview string
	RedirectURLProd    string

	// Provider
	ProviderTimeout time.Duration

	// Cookie
	CookieSecure bool

	// Rate Limit
	RateLimitGeneral int // 認証済みAPIのレート（req/min/user）

	// Worker
	SessionRetention time.Duration
	CleanupInterval  time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// defaultLocalRedirect はリダイレクト先が一切設定されていない場合のフォールバック。
const defaultLocalRedirect = "http://localhost:3000/"

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	if cfg.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}

	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	if cfg.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}

	cfg.SpotifyRedirectURI = os.Getenv("SPOTIFY_REDIRECT_URI")
	if cfg.SpotifyRedirectURI == "" {
		missing = append(missing, "SPOTIFY_REDIRECT_URI")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.Scopes = getEnvString("SCOPES", "user-read-private user-read-email")
	cfg.NextJSEnv = getEnvString("NEXTJS_ENV", "production")
	cfg.RedirectURLDev = os.Getenv("REDIRECT_URL_DEV")
	cfg.RedirectURLPreview = os.Getenv("REDIRECT_URL_PREVIEW")
	cfg.RedirectURLProd = os.Getenv("REDIRECT_URL_PROD")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", true)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.SessionRetention = getEnvDuration("SESSION_RETENTION", 7*24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.RedirectURL())

	return cfg, nil
}

// RedirectURL はNEXTJS_ENVに応じたログイン完了後のリダイレクト先を返す。
// 未知の環境名や対応するURLの未設定時はlocalhostにフォールバックする。
func (c *Config) RedirectURL() string {
	urls := map[string]string{
		"development": c.RedirectURLDev,
		"preview":     c.RedirectURLPreview,
		"production":  c.RedirectURLProd,
	}

	env := c.NextJSEnv
	if env == "" {
		env = "production"
	}

	if u := urls[env]; u != "" {
		return u
	}
	return defaultLocalRedirect
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
