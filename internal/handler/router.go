package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/egurtak/internal/composer"
	"github.com/hitoshi/egurtak/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	BodyLimit         int64

	// 画面
	Pages  *Pages
	Gate   SessionGate
	Feed   FeedView
	Themes ThemeStore

	// バックエンド
	Auth    AuthService
	Posts   PostGetter
	Creator composer.PostCreator

	// 画像プロキシ
	Images http.Handler

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics http.Handler
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → BodyLimit → CSRF → RateLimit(General)
//
// ゲート付き画面はさらにSessionGateを通過する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.BodyLimit > 0 {
		r.Use(middleware.NewBodyLimitMiddleware(deps.BodyLimit))
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	feedHandler := NewFeedHandler(deps.Pages, deps.Gate, deps.Feed, deps.Posts, deps.Themes, logger)
	authHandler := NewAuthHandler(deps.Pages, deps.Auth, deps.Gate, logger)
	postHandler := NewPostHandler(deps.Pages, deps.Creator, logger)

	// --- 認証不要のルート ---
	r.Get("/health", Health)
	r.Handle("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.Images != nil {
		r.Handle("/images", deps.Images)
	}

	// フィードは入場時にゲートが遷移先を決める
	r.Get("/", feedHandler.Feed)

	r.Get("/auth", authHandler.LoginPage)
	r.Post("/auth/login", authHandler.Login)
	r.Get("/signup", authHandler.SignupPage)
	r.With(deps.RateLimiter.PostingMiddleware()).Post("/signup", authHandler.Signup)

	// --- ゲート付きのルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionGateMiddleware(deps.Gate))

		r.Get("/posts/{id}", feedHandler.Post)
		r.Get("/add-post", postHandler.AddPostPage)
		r.With(deps.RateLimiter.PostingMiddleware()).Post("/posts", postHandler.CreatePost)
		r.Get("/profile", Profile(deps.Pages))
		r.Post("/theme", feedHandler.ToggleTheme)
		r.Post("/logout", authHandler.Logout)
	})

	return r
}

// Health はヘルスチェック応答を返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
