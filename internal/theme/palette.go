package theme

import "github.com/hitoshi/egurtak/internal/model"

// Palette はテーマごとの配色を表す。値はCSS形式の色コード。
type Palette struct {
	Background    string
	Text          string
	Primary       string
	Card          string
	SecondaryText string
	Separator     string
}

var (
	lightPalette = Palette{
		Background:    "#FDF5E6",
		Text:          "#004E8C",
		Primary:       "#3B82F6",
		Card:          "#004E8C",
		SecondaryText: "#555555",
		Separator:     "#DDDDDD",
	}
	darkPalette = Palette{
		Background:    "#212121",
		Text:          "#E0E0E0",
		Primary:       "#303030",
		Card:          "#A34343",
		SecondaryText: "#A0A0A0",
		Separator:     "#424242",
	}
)

// PaletteFor はテーマに対応する配色を返す。
func PaletteFor(t model.Theme) Palette {
	if t == model.ThemeDark {
		return darkPalette
	}
	return lightPalette
}

// ToggleLabel はテーマ切り替えボタンの文言を返す。
// 切り替え先のテーマ名を表示する。
func ToggleLabel(current model.Theme) string {
	if current == model.ThemeDark {
		return "Світла"
	}
	return "Темна"
}

// DisplayName はテーマの表示名を返す。
func DisplayName(t model.Theme) string {
	if t == model.ThemeDark {
		return "темна"
	}
	return "світла"
}
