package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL     string        `env:"EGURTAK_API_URL"         envDefault:"http://172.23.168.1:8000"`
	APIPathPrefix  string        `env:"EGURTAK_API_PREFIX"      envDefault:"/api"`
	AuthScheme     string        `env:"EGURTAK_AUTH_SCHEME"     envDefault:"Token"`
	RequestTimeout time.Duration `env:"EGURTAK_REQUEST_TIMEOUT" envDefault:"30s"`

	// Store
	StoreDriver   string `env:"EGURTAK_STORE_DRIVER" envDefault:"sqlite"`
	StorePath     string `env:"EGURTAK_STORE_PATH"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"           envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	TokenKey      string `env:"EGURTAK_TOKEN_KEY"` // 64桁の16進数（32バイト）

	// Theme
	SystemAppearance string `env:"EGURTAK_SYSTEM_APPEARANCE"` // light, dark, 空なら端末から推定

	// Web
	WebPort           string        `env:"WEB_PORT"            envDefault:"8080"`
	BaseURL           string        `env:"BASE_URL"            envDefault:"http://localhost:8080"`
	CORSAllowedOrigin string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:8080"`
	RateLimitGeneral  int           `env:"RATE_LIMIT_GENERAL"  envDefault:"120"`
	RateLimitPosting  int           `env:"RATE_LIMIT_POSTING"  envDefault:"10"`
	UploadMaxSize     int64         `env:"UPLOAD_MAX_SIZE"     envDefault:"10485760"`
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`
	ImageMaxSize      int64         `env:"IMAGE_MAX_SIZE"      envDefault:"5242880"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie（BASE_URLから導出）
	CookieSecure bool `env:"-"`
}

// サポートするストアドライバー
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// Load は環境変数からConfigを読み込む。
// 値の組み合わせが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIPathPrefix = normalizePrefix(cfg.APIPathPrefix)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	var invalid []string

	if cfg.APIBaseURL == "" {
		invalid = append(invalid, "EGURTAK_API_URL")
	}

	switch cfg.AuthScheme {
	case "Token", "Bearer":
	default:
		invalid = append(invalid, "EGURTAK_AUTH_SCHEME")
	}

	switch cfg.StoreDriver {
	case StoreDriverSQLite, StoreDriverRedis, StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			invalid = append(invalid, "DATABASE_URL")
		}
	default:
		invalid = append(invalid, "EGURTAK_STORE_DRIVER")
	}

	if cfg.TokenKey != "" {
		if _, err := cfg.TokenKeyBytes(); err != nil {
			invalid = append(invalid, "EGURTAK_TOKEN_KEY")
		}
	}

	switch cfg.SystemAppearance {
	case "", "light", "dark":
	default:
		invalid = append(invalid, "EGURTAK_SYSTEM_APPEARANCE")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	if cfg.StoreDriver == StoreDriverSQLite && cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath()
	}

	return cfg, nil
}

// TokenKeyBytes はトークン暗号化キーをバイト列で返す。
func (c *Config) TokenKeyBytes() (*[32]byte, error) {
	raw, err := hex.DecodeString(c.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("token key is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("token key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// normalizePrefix はAPIパスプレフィックスを"/api"の形式に揃える。
// 空文字列はプレフィックスなしを意味する。
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// defaultStorePath はユーザー設定ディレクトリ配下のSQLiteファイルパスを返す。
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "egurtak.db"
	}
	return filepath.Join(dir, "egurtak", "egurtak.db")
}
