// Package terminal はCLIの各画面を端末に描画する。
// 配色はテーマストアのPaletteに従い、テーマ変更を購読して切り替える。
package terminal

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/theme"
)

// 画面の固定文言
const (
	FeedTitle    = "Оголошення"
	EmptyFeed    = "Тут поки пусто."
	ProfileTitle = "Мій Профіль"
	LogoutLabel  = "Вийти"
	dateLayout   = "02.01.2006 15:04"
	previewLines = 2
	previewWidth = 72
)

// LinkFinder は本文からURLを抽出するインターフェース。
type LinkFinder interface {
	Links(text string) []string
}

// URLResolver は相対パスの画像URLを絶対URLに解決するインターフェース。
type URLResolver interface {
	ResolveURL(ref string) string
}

// styles は配色から組み立てた描画スタイル。
type styles struct {
	header    lipgloss.Style
	title     lipgloss.Style
	body      lipgloss.Style
	meta      lipgloss.Style
	card      lipgloss.Style
	separator lipgloss.Style
	alert     lipgloss.Style
	notice    lipgloss.Style
	button    lipgloss.Style
}

// Renderer は画面を出力先に描画する。
// SetPaletteとFollowは描画と並行して呼び出してよい。
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	lg       *lipgloss.Renderer
	links    LinkFinder
	resolver URLResolver
	palette  theme.Palette
	st       styles
}

// NewRenderer はRendererを生成する。
// lgがnilの場合は出力先から色プロファイルを判定する。
func NewRenderer(out io.Writer, lg *lipgloss.Renderer, links LinkFinder, resolver URLResolver, palette theme.Palette) *Renderer {
	if lg == nil {
		lg = lipgloss.NewRenderer(out)
	}
	r := &Renderer{
		out:      out,
		lg:       lg,
		links:    links,
		resolver: resolver,
	}
	r.SetPalette(palette)
	return r
}

// SetPalette は配色を切り替える。
func (r *Renderer) SetPalette(p theme.Palette) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.palette = p
	r.st = newStyles(r.lg, p)
}

// Palette は現在の配色を返す。
func (r *Renderer) Palette() theme.Palette {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.palette
}

// Follow はテーマ変更の通知を受け取り、配色を切り替え続ける。
// チャネルがクローズされるかctxがキャンセルされると戻る。
func (r *Renderer) Follow(ctx context.Context, updates <-chan model.Theme) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-updates:
			if !ok {
				return
			}
			r.SetPalette(theme.PaletteFor(t))
		}
	}
}

func newStyles(lg *lipgloss.Renderer, p theme.Palette) styles {
	text := lipgloss.Color(p.Text)
	secondary := lipgloss.Color(p.SecondaryText)
	return styles{
		header: lg.NewStyle().Bold(true).Foreground(text),
		title:  lg.NewStyle().Bold(true).Foreground(text),
		body:   lg.NewStyle().Foreground(text),
		meta:   lg.NewStyle().Faint(true).Foreground(secondary),
		card: lg.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Card)).
			Padding(0, 1),
		separator: lg.NewStyle().Foreground(lipgloss.Color(p.Separator)),
		alert:     lg.NewStyle().Bold(true).Foreground(lipgloss.Color("#D32F2F")),
		notice:    lg.NewStyle().Foreground(text),
		button:    lg.NewStyle().Foreground(lipgloss.Color(p.Primary)).Underline(true),
	}
}

// Feed は投稿一覧画面を描画する。postsは表示順（新しい順）で渡す。
// currentは現在のテーマで、切り替えボタンの文言に使う。
func (r *Renderer) Feed(posts []model.Post, current model.Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.st.header.Render(FeedTitle))
	b.WriteString("  ")
	b.WriteString(r.st.button.Render("[" + theme.ToggleLabel(current) + "]"))
	b.WriteString("\n\n")

	if len(posts) == 0 {
		b.WriteString(r.st.meta.Render(EmptyFeed))
		b.WriteString("\n")
		return r.write(b.String())
	}

	for _, p := range posts {
		card := r.st.title.Render(fmt.Sprintf("#%d %s", p.ID, p.Title))
		if pre := preview(p.Content); pre != "" {
			card += "\n" + r.st.meta.Render(pre)
		}
		if p.HasImage() {
			card += "\n" + r.st.meta.Render("[фото]")
		}
		b.WriteString(r.st.card.Render(card))
		b.WriteString("\n")
	}
	return r.write(b.String())
}

// Post は投稿詳細画面を描画する。
func (r *Renderer) Post(p model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.st.header.Render(p.Title))
	b.WriteString("\n")
	if meta := postMeta(p); meta != "" {
		b.WriteString(r.st.meta.Render(meta))
		b.WriteString("\n")
	}
	b.WriteString(r.st.separator.Render(strings.Repeat("─", previewWidth/2)))
	b.WriteString("\n")
	b.WriteString(r.st.body.Render(p.Content))
	b.WriteString("\n")

	if p.HasImage() {
		image := p.ImageURL
		if r.resolver != nil {
			image = r.resolver.ResolveURL(image)
		}
		b.WriteString("\n")
		b.WriteString(r.st.meta.Render("Фото: " + image))
		b.WriteString("\n")
	}

	if r.links != nil {
		if links := r.links.Links(p.Content); len(links) > 0 {
			b.WriteString("\n")
			b.WriteString(r.st.meta.Render("Посилання:"))
			b.WriteString("\n")
			for _, l := range links {
				b.WriteString("  " + r.st.button.Render(l) + "\n")
			}
		}
	}
	return r.write(b.String())
}

// Alert はエラー通知を描画する。nilの場合は何もしない。
func (r *Renderer) Alert(a *model.Alert) error {
	if a == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	line := r.st.alert.Render(a.Title+":") + " " + r.st.body.Render(a.Message)
	if a.Action != "" {
		line += "\n" + r.st.meta.Render(a.Action)
	}
	return r.write(line + "\n")
}

// Notice は成功メッセージなどの通知を描画する。
func (r *Renderer) Notice(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(r.st.notice.Render(msg) + "\n")
}

// Profile はプロフィール画面を描画する。
func (r *Renderer) Profile(p model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.st.header.Render(ProfileTitle))
	b.WriteString("\n")
	b.WriteString(r.st.card.Render(r.st.title.Render(p.Initial())))
	b.WriteString("\n")
	b.WriteString(r.st.title.Render(p.Username))
	b.WriteString("\n")
	b.WriteString(r.st.meta.Render("Гуртожиток № " + p.DormNumber))
	b.WriteString("\n\n")
	b.WriteString(r.st.button.Render(LogoutLabel + ": egurtak logout"))
	b.WriteString("\n")
	return r.write(b.String())
}

// Theme は現在のテーマを描画する。
func (r *Renderer) Theme(t model.Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(r.st.notice.Render("Тема: "+theme.DisplayName(t)) + "\n")
}

// write はロック取得済みの状態で呼び出す。
func (r *Renderer) write(s string) error {
	if _, err := io.WriteString(r.out, s); err != nil {
		return fmt.Errorf("failed to write screen: %w", err)
	}
	return nil
}

// preview は本文の先頭previewLines行を幅previewWidthで切り詰めて返す。
func preview(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
		lines[previewLines-1] += "…"
	}
	for i, l := range lines {
		lines[i] = truncate(strings.TrimSpace(l), previewWidth)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func postMeta(p model.Post) string {
	var parts []string
	if p.DormNumber != nil {
		parts = append(parts, "Гуртожиток № "+strconv.Itoa(*p.DormNumber))
	}
	if !p.CreatedAt.IsZero() {
		parts = append(parts, p.CreatedAt.Local().Format(dateLayout))
	}
	return strings.Join(parts, " · ")
}
