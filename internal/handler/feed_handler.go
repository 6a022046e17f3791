package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/egurtak/internal/apiclient"
	"github.com/hitoshi/egurtak/internal/gate"
	"github.com/hitoshi/egurtak/internal/middleware"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
	"github.com/hitoshi/egurtak/internal/terminal"
)

// SessionGate はハンドラーが使用するセッションゲートのインターフェース。
type SessionGate interface {
	Enter(ctx context.Context, navigator nav.Navigator) gate.State
	Require(ctx context.Context, navigator nav.Navigator) gate.State
	Logout(ctx context.Context, navigator nav.Navigator) error
}

// FeedView はフィード画面が表示する投稿一覧のインターフェース。
type FeedView interface {
	Posts() []model.Post
	LastError() error
}

// PostGetter は投稿詳細の取得に必要なインターフェース。
type PostGetter interface {
	GetPost(ctx context.Context, id int64) (*model.Post, error)
}

// FeedHandler はフィード画面と投稿詳細画面のHTTPハンドラー。
type FeedHandler struct {
	pages  *Pages
	gate   SessionGate
	feed   FeedView
	posts  PostGetter
	themes ThemeStore
	logger *slog.Logger
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(pages *Pages, g SessionGate, feed FeedView, posts PostGetter, themes ThemeStore, logger *slog.Logger) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{
		pages:  pages,
		gate:   g,
		feed:   feed,
		posts:  posts,
		themes: themes,
		logger: logger,
	}
}

// feedContent はフィード画面のテンプレートデータ。
type feedContent struct {
	Posts []model.Post
}

// postContent は投稿詳細画面のテンプレートデータ。
type postContent struct {
	Post *model.Post
}

// Feed はフィード画面を表示する。表示のたびに投稿一覧を再取得する。
// GET /
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	navigator := middleware.NewRedirectNavigator(w, r)
	if h.gate.Enter(r.Context(), navigator) != gate.StateAuthenticated {
		if !navigator.Redirected() {
			http.Redirect(w, r, nav.RouteLogin, http.StatusSeeOther)
		}
		return
	}

	data := pageData{
		Title:         terminal.FeedTitle,
		Authenticated: true,
		Content:       feedContent{Posts: h.feed.Posts()},
	}
	// 読み込み失敗時は空の一覧を表示し、401の場合のみ再ログインを促す
	if err := h.feed.LastError(); err != nil && model.IsUnauthorized(err) {
		data.Alert = model.ToAlert(err)
	}
	h.pages.render(w, r, http.StatusOK, pageFeed, data)
}

// Post は投稿詳細画面を表示する。
// GET /posts/{id}
func (h *FeedHandler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.pages.render(w, r, http.StatusNotFound, pagePost, pageData{
			Title:         terminal.FeedTitle,
			Authenticated: true,
			Alert:         notFoundAlert(),
			Content:       postContent{},
		})
		return
	}

	post, err := h.posts.GetPost(r.Context(), id)
	if err != nil {
		h.logger.Warn("投稿詳細の取得に失敗しました",
			slog.Int64("post_id", id),
			slog.String("error", err.Error()),
		)
		h.pages.render(w, r, statusForError(err), pagePost, pageData{
			Title:         terminal.FeedTitle,
			Authenticated: true,
			Alert:         model.ToAlert(err),
			Content:       postContent{},
		})
		return
	}

	h.pages.render(w, r, http.StatusOK, pagePost, pageData{
		Title:         post.Title,
		Authenticated: true,
		Content:       postContent{Post: post},
	})
}

// ToggleTheme はテーマを切り替えてフィードへ戻る。
// 保存に失敗しても切り替えは反映されるため、警告のみ表示する。
// POST /theme
func (h *FeedHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	if _, err := h.themes.Toggle(r.Context()); err != nil {
		h.logger.Warn("テーマ設定の保存に失敗しました", slog.String("error", err.Error()))
		setFlash(w, model.ToAlert(err).Message)
	}
	middleware.NewRedirectNavigator(w, r).Back()
}

// notFoundAlert は投稿が見つからない場合の通知を返す。
func notFoundAlert() *model.Alert {
	return model.ToAlert(&model.HTTPError{Status: http.StatusNotFound, Message: apiclient.PostNotFoundMessage})
}

// statusForError はエラーに対応するHTTPステータスを返す。
func statusForError(err error) int {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == http.StatusNotFound:
			return http.StatusNotFound
		case httpErr.Status == http.StatusUnauthorized:
			return http.StatusUnauthorized
		case httpErr.Status >= 400 && httpErr.Status < 500:
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}
	var shapeErr *model.ShapeError
	if errors.As(err, &shapeErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
