package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/egurtak/internal/handler"
	"github.com/hitoshi/egurtak/internal/metrics"
	"github.com/hitoshi/egurtak/internal/middleware"
	"github.com/hitoshi/egurtak/internal/security"
)

// NewWebHandler はコンテナの依存関係からWebフロントエンドのルーターを構築する。
// 返されたstopはレート制限のクリーンアップを停止する。
func NewWebHandler(c *Container) (http.Handler, func(), error) {
	cfg := c.Config

	pages, err := handler.NewPages(c.Themes, c.Sanitizer, c.Logger)
	if err != nil {
		return nil, nil, err
	}

	// バックエンドAPIのオリジンは画像プロキシで信頼済みとして扱う
	guard := security.NewSSRFGuard(cfg.APIBaseURL)
	images := handler.NewImageHandler(c.Client, guard, c.Metrics, handler.ImageProxyConfig{
		Timeout: cfg.ImageFetchTimeout,
		MaxSize: cfg.ImageMaxSize,
	}, c.Logger)

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPosting))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            c.Logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		RateLimiter:       rl,
		BodyLimit:         cfg.UploadMaxSize,
		Pages:             pages,
		Gate:              c.Gate,
		Feed:              c.Loader,
		Themes:            c.Themes,
		Auth:              c.Auth,
		Posts:             c.Client,
		Creator:           c.Client,
		Images:            images,
		Metrics:           metrics.Handler(c.Registry),
	})
	return router, rl.Stop, nil
}

// runWeb はローカルWebフロントエンドを起動する。
// ctxがキャンセルされる（SIGINTまたはSIGTERMを受信する）とグレースフルシャットダウンを行う。
func runWeb(ctx context.Context, c *Container) error {
	router, stopLimiter, err := NewWebHandler(c)
	if err != nil {
		return fmt.Errorf("failed to build web handler: %w", err)
	}
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + c.Config.WebPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: c.Config.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("Webサーバーを起動します",
			slog.String("addr", server.Addr),
			slog.String("base_url", c.Config.BaseURL),
			slog.String("api", c.Config.APIBaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.Logger.Info("Webサーバーを停止します")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	c.Logger.Info("Webサーバーを正常に停止しました")
	return nil
}
