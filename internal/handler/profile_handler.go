package handler

import (
	"net/http"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/terminal"
)

// profileContent はプロフィール画面のテンプレートデータ。
type profileContent struct {
	Profile model.Profile
	Initial string
}

// Profile はプロフィール画面を表示する。
// GET /profile
func Profile(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := model.PlaceholderProfile()
		pages.render(w, r, http.StatusOK, pageProfile, pageData{
			Title:         terminal.ProfileTitle,
			Authenticated: true,
			Content:       profileContent{Profile: p, Initial: p.Initial()},
		})
	}
}
