package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/egurtak/internal/apiclient"
	"github.com/hitoshi/egurtak/internal/auth"
	"github.com/hitoshi/egurtak/internal/config"
	"github.com/hitoshi/egurtak/internal/database"
	"github.com/hitoshi/egurtak/internal/feed"
	"github.com/hitoshi/egurtak/internal/gate"
	"github.com/hitoshi/egurtak/internal/metrics"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/repository"
	"github.com/hitoshi/egurtak/internal/security"
	"github.com/hitoshi/egurtak/internal/session"
	"github.com/hitoshi/egurtak/internal/terminal"
	"github.com/hitoshi/egurtak/internal/theme"
)

// Container は起動時に一度だけ構築し、両フロントエンドに注入する依存関係。
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Collector
	Sessions  *session.Store
	Client    *apiclient.Client
	Loader    *feed.Loader
	Gate      *gate.Gate
	Themes    *theme.Store
	Auth      *auth.Service
	Sanitizer security.ContentSanitizerService
	Renderer  *terminal.Renderer

	closers []func() error
}

// NewContainer は設定からストア・APIクライアント・各画面のサービスを構築する。
// outはCLI画面の出力先。
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger}

	// 1. 永続ストア
	kv, err := c.openStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	if cfg.TokenKey != "" {
		key, err := cfg.TokenKeyBytes()
		if err != nil {
			c.Close()
			return nil, err
		}
		kv = repository.NewSealedKVRepo(kv, key)
	}

	// 2. メトリクス
	c.Registry = prometheus.NewRegistry()
	c.Metrics = metrics.NewCollector(c.Registry)

	// 3. セッションとAPIクライアント
	c.Sessions = session.NewStore(kv, logger)
	c.Client = apiclient.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		c.Sessions,
		nil,
		logger,
		apiclient.Options{
			BaseURL:    cfg.APIBaseURL,
			PathPrefix: cfg.APIPathPrefix,
			AuthScheme: cfg.AuthScheme,
			Metrics:    c.Metrics,
		},
	)

	// 4. 画面のサービス
	c.Loader = feed.NewLoader(c.Client, logger, c.Metrics)
	c.Gate = gate.New(c.Sessions, c.Loader, logger)
	c.Auth = auth.NewService(c.Client, c.Sessions, logger)

	// 5. テーマと描画
	lg := lipgloss.NewRenderer(out)
	var appearance theme.Appearance = theme.TerminalAppearance{Renderer: lg}
	if cfg.SystemAppearance != "" {
		appearance = theme.Fixed(model.Theme(cfg.SystemAppearance))
	}
	c.Themes = theme.NewStore(ctx, kv, appearance, logger)
	c.Sanitizer = security.NewContentSanitizer()
	c.Renderer = terminal.NewRenderer(out, lg, c.Sanitizer, c.Client, c.Themes.Palette())

	return c, nil
}

// openStore は設定されたドライバーのキーバリューストアを開く。
// SQLiteは単一ユーザーのローカルファイルのため起動時にマイグレーションを適用する。
// PostgreSQLはmigrateコマンドで明示的に適用する。
func (c *Container) openStore(ctx context.Context) (repository.KVRepository, error) {
	cfg := c.Config
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return repository.NewMemoryKVRepo(), nil

	case config.StoreDriverRedis:
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb.Close)
		return repository.NewRedisKVRepo(rdb), nil

	case config.StoreDriverPostgres:
		db, err := c.openDB(ctx, database.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresKVRepo(db), nil

	default:
		db, err := c.openDB(ctx, database.DriverSQLite, cfg.StorePath)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(db, database.DriverSQLite); err != nil {
			return nil, err
		}
		return repository.NewSQLiteKVRepo(db), nil
	}
}

// openDB はSQLデータベースを開き、疎通を確認する。
func (c *Container) openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := database.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.Logger.Debug("データベースに接続しました", slog.String("driver", driver))
	return db, nil
}

// Close はストアの接続を閉じる。
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
