// Package handler はWebフロントエンドのHTTPハンドラーを提供する。
// 各画面はサーバー側でHTMLを描画し、状態変更はPOST→303リダイレクトで行う。
package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/egurtak/internal/middleware"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

// 画面テンプレート名
const (
	pageFeed    = "feed.html"
	pagePost    = "post.html"
	pageAddPost = "add_post.html"
	pageAuth    = "auth.html"
	pageSignup  = "signup.html"
	pageProfile = "profile.html"
)

const (
	dateLayout   = "02.01.2006 15:04"
	previewRunes = 120
)

// ThemeStore はハンドラーが使用するテーマストアのインターフェース。
type ThemeStore interface {
	Get() model.Theme
	Palette() theme.Palette
	Toggle(ctx context.Context) (model.Theme, error)
}

// TextRenderer は投稿本文をHTMLに変換するインターフェース。
type TextRenderer interface {
	RenderText(text string) template.HTML
}

// pageData は全画面共通のテンプレートデータ。
type pageData struct {
	Title         string
	Theme         model.Theme
	ToggleLabel   string
	PaletteCSS    template.CSS
	CSRFToken     string
	Authenticated bool
	Alert         *model.Alert
	Notice        string
	Content       any
}

// Pages は画面テンプレートを保持し、共通レイアウトで描画する。
type Pages struct {
	templates map[string]*template.Template
	themes    ThemeStore
	logger    *slog.Logger
}

// NewPages は埋め込みテンプレートを解析してPagesを生成する。
func NewPages(themes ThemeStore, text TextRenderer, logger *slog.Logger) (*Pages, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcs := template.FuncMap{
		"imageProxy": imageProxyURL,
		"preview":    preview,
		"formatDate": func(t time.Time) string { return t.Local().Format(dateLayout) },
		"renderText": text.RenderText,
	}

	pages := &Pages{
		templates: make(map[string]*template.Template),
		themes:    themes,
		logger:    logger,
	}
	for _, name := range []string{pageFeed, pagePost, pageAddPost, pageAuth, pageSignup, pageProfile} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages.templates[name] = tmpl
	}
	return pages, nil
}

// render は画面を描画する。
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := p.templates[name]
	if !ok {
		p.logger.Error("未登録のテンプレートです", slog.String("template", name))
		middleware.WriteInternalServerError(w)
		return
	}

	current := p.themes.Get()
	data.Theme = current
	data.ToggleLabel = theme.ToggleLabel(current)
	data.PaletteCSS = paletteCSS(p.themes.Palette())
	data.CSRFToken = middleware.CSRFToken(r.Context())
	if data.Notice == "" {
		data.Notice = popFlash(w, r)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		p.logger.Error("テンプレートの描画に失敗しました",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// paletteCSS は配色をCSSカスタムプロパティとして返す。
func paletteCSS(p theme.Palette) template.CSS {
	return template.CSS(fmt.Sprintf(
		"--background: %s; --text: %s; --primary: %s; --card: %s; --secondary-text: %s; --separator: %s;",
		p.Background, p.Text, p.Primary, p.Card, p.SecondaryText, p.Separator,
	))
}

// imageProxyURL は投稿画像を画像プロキシ経由で参照するURLを返す。
func imageProxyURL(src string) string {
	return "/images?src=" + url.QueryEscape(src)
}

// preview は一覧表示用に本文を切り詰める。
func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes-1]) + "…"
}

// flashCookieName は次の画面に表示する通知を保持するCookie名。
const flashCookieName = "flash"

// setFlash はリダイレクト先で表示する通知を設定する。
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash は通知を取り出してCookieを削除する。
func popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return msg
}
