package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/egurtak/internal/composer"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

const addPostTitle = "Нове оголошення"

// PostHandler は投稿作成画面のHTTPハンドラー。
type PostHandler struct {
	pages   *Pages
	creator composer.PostCreator
	logger  *slog.Logger
}

// NewPostHandler はPostHandlerを生成する。
// 投稿作成のメトリクスはcreator（APIクライアント）側で記録する。
func NewPostHandler(pages *Pages, creator composer.PostCreator, logger *slog.Logger) *PostHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostHandler{
		pages:   pages,
		creator: creator,
		logger:  logger,
	}
}

// addPostContent は投稿作成画面のテンプレートデータ。
type addPostContent struct {
	Title   string
	Content string
}

// AddPostPage は空の投稿作成画面を表示する。
// GET /add-post
func (h *PostHandler) AddPostPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageAddPost, pageData{
		Title:         addPostTitle,
		Authenticated: true,
		Content:       addPostContent{},
	})
}

// CreatePost は投稿を送信する。
// 失敗した場合は入力値を保持したまま画面を再表示する。
// 添付画像は再送信時に選び直す必要がある。
// POST /posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	c := composer.New(h.creator, nil, h.logger)
	c.SetTitle(r.PostFormValue("title"))
	c.SetContent(r.PostFormValue("content"))

	fail := func(err error) {
		d := c.Draft()
		h.pages.render(w, r, statusForError(err), pageAddPost, pageData{
			Title:         addPostTitle,
			Authenticated: true,
			Alert:         model.ToAlert(err),
			Content:       addPostContent{Title: d.Title, Content: d.Content},
		})
	}

	// 画像を保存する前に入力を検証する
	if err := composer.Validate(c.Draft()); err != nil {
		fail(err)
		return
	}

	imageURI, cleanup, err := saveUpload(r, "image")
	defer cleanup()
	if err != nil {
		h.logger.Warn("添付画像の保存に失敗しました", slog.String("error", err.Error()))
		fail(err)
		return
	}
	c.AttachImage(imageURI)

	result, err := c.Submit(r.Context())
	if err != nil {
		fail(err)
		return
	}
	setFlash(w, result.Message)
	http.Redirect(w, r, nav.RouteFeed, http.StatusSeeOther)
}
