package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hitoshi/egurtak/internal/model"
)

// Appearance はシステムの外観設定を返すインターフェース。
// 判定できない場合はfalseを返す。
type Appearance interface {
	SystemTheme() (model.Theme, bool)
}

// Fixed は設定値で固定された外観。空文字列は判定不能として扱う。
type Fixed model.Theme

// SystemTheme はAppearanceを実装する。
func (f Fixed) SystemTheme() (model.Theme, bool) {
	return model.ParseTheme(string(f))
}

// TerminalAppearance は端末の背景色から外観を推定する。
type TerminalAppearance struct {
	Renderer *lipgloss.Renderer
}

// SystemTheme はAppearanceを実装する。
// 色を扱えない端末（パイプ出力など）では判定不能とする。
func (a TerminalAppearance) SystemTheme() (model.Theme, bool) {
	r := a.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	if r.ColorProfile() == termenv.Ascii {
		return "", false
	}
	if r.HasDarkBackground() {
		return model.ThemeDark, true
	}
	return model.ThemeLight, true
}
