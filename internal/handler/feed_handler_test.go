package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func intPtr(n int) *int { return &n }

func TestFeed_Unauthenticated_RedirectsToLogin(t *testing.T) {
	g := &mockSessionGate{}
	h := NewFeedHandler(newTestPages(t, nil), g, &mockFeedView{}, &mockPostGetter{}, &mockThemeStore{}, nil)

	w := httptest.NewRecorder()
	h.Feed(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != nav.RouteLogin {
		t.Errorf("Location = %q, want %q", loc, nav.RouteLogin)
	}
}

func TestFeed_RendersPostsInOrder(t *testing.T) {
	g := &mockSessionGate{authenticated: true}
	feed := &mockFeedView{posts: []model.Post{
		{ID: 2, Title: "Продам чайник", Content: "Майже новий"},
		{ID: 1, Title: "Шукаю сусіда", Content: "Кімната 305", ImageURL: "http://172.23.168.1:8000/media/a.jpg"},
	}}
	h := NewFeedHandler(newTestPages(t, nil), g, feed, &mockPostGetter{}, &mockThemeStore{}, nil)

	w := httptest.NewRecorder()
	h.Feed(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if g.entered != 1 {
		t.Errorf("Enter called %d times, want 1", g.entered)
	}
	body := w.Body.String()
	first := strings.Index(body, "Продам чайник")
	second := strings.Index(body, "Шукаю сусіда")
	if first < 0 || second < 0 || first > second {
		t.Errorf("posts should be rendered in server order, body:\n%s", body)
	}
	if !strings.Contains(body, `href="/posts/2"`) {
		t.Error("card should link to post detail")
	}
	if !strings.Contains(body, "/images?src=http%3A%2F%2F172.23.168.1%3A8000%2Fmedia%2Fa.jpg") {
		t.Error("image should be served through the image proxy")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestFeed_EmptyShowsPlaceholder(t *testing.T) {
	h := NewFeedHandler(newTestPages(t, nil), &mockSessionGate{authenticated: true}, &mockFeedView{}, &mockPostGetter{}, &mockThemeStore{}, nil)

	w := httptest.NewRecorder()
	h.Feed(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(w.Body.String(), "Тут поки пусто.") {
		t.Error("empty feed should show placeholder text")
	}
}

// TestFeed_LoadErrorOnlyAlertsOn401 は読み込み失敗時に401の場合のみ通知を表示することを検証する。
func TestFeed_LoadErrorOnlyAlertsOn401(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantAlert bool
	}{
		{"401", &model.HTTPError{Status: http.StatusUnauthorized}, true},
		{"500", &model.HTTPError{Status: http.StatusInternalServerError}, false},
		{"ネットワーク障害", &model.HTTPError{Message: model.GenericHTTPMessage, Err: errors.New("dial")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &mockFeedView{lastErr: tt.err}
			h := NewFeedHandler(newTestPages(t, nil), &mockSessionGate{authenticated: true}, feed, &mockPostGetter{}, &mockThemeStore{}, nil)

			w := httptest.NewRecorder()
			h.Feed(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			got := strings.Contains(w.Body.String(), `role="alert"`)
			if got != tt.wantAlert {
				t.Errorf("alert shown = %v, want %v", got, tt.wantAlert)
			}
		})
	}
}

func TestPost_RendersDetail(t *testing.T) {
	posts := &mockPostGetter{
		getPostFn: func(ctx context.Context, id int64) (*model.Post, error) {
			if id != 7 {
				t.Errorf("id = %d, want 7", id)
			}
			return &model.Post{
				ID:         7,
				Title:      "Продам чайник",
				Content:    "Пишіть https://t.me/seller\n<script>alert(1)</script>",
				DormNumber: intPtr(11),
			}, nil
		},
	}
	h := NewFeedHandler(newTestPages(t, nil), &mockSessionGate{authenticated: true}, &mockFeedView{}, posts, &mockThemeStore{}, nil)

	w := httptest.NewRecorder()
	h.Post(w, withURLParam(httptest.NewRequest(http.MethodGet, "/posts/7", nil), "id", "7"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Гуртожиток № 11") {
		t.Error("detail should show dorm number")
	}
	if !strings.Contains(body, `href="https://t.me/seller"`) {
		t.Error("links in content should be clickable")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("content must be escaped")
	}
}

func TestPost_InvalidID_NotFound(t *testing.T) {
	called := false
	posts := &mockPostGetter{
		getPostFn: func(ctx context.Context, id int64) (*model.Post, error) {
			called = true
			return nil, nil
		},
	}
	h := NewFeedHandler(newTestPages(t, nil), &mockSessionGate{authenticated: true}, &mockFeedView{}, posts, &mockThemeStore{}, nil)

	w := httptest.NewRecorder()
	h.Post(w, withURLParam(httptest.NewRequest(http.MethodGet, "/posts/abc", nil), "id", "abc"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if called {
		t.Error("backend should not be called for invalid id")
	}
}

func TestPost_BackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"見つからない", &model.HTTPError{Status: http.StatusNotFound, Message: "Оголошення не знайдено."}, http.StatusNotFound},
		{"401", &model.HTTPError{Status: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"サーバーエラー", &model.HTTPError{Status: http.StatusInternalServerError}, http.StatusBadGateway},
		{"形式エラー", &model.ShapeError{What: "post", Reason: "not an object"}, http.StatusBadGateway},
		{"その他", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := &mockPostGetter{
				getPostFn: func(ctx context.Context, id int64) (*model.Post, error) {
					return nil, tt.err
				},
			}
			h := NewFeedHandler(newTestPages(t, nil), &mockSessionGate{authenticated: true}, &mockFeedView{}, posts, &mockThemeStore{}, nil)

			w := httptest.NewRecorder()
			h.Post(w, withURLParam(httptest.NewRequest(http.MethodGet, "/posts/3", nil), "id", "3"))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), `role="alert"`) {
				t.Error("error should be shown as alert")
			}
		})
	}
}

func TestToggleTheme_SwitchesAndRedirects(t *testing.T) {
	themes := &mockThemeStore{current: model.ThemeLight}
	h := NewFeedHandler(newTestPages(t, themes), &mockSessionGate{authenticated: true}, &mockFeedView{}, &mockPostGetter{}, themes, nil)

	w := httptest.NewRecorder()
	h.ToggleTheme(w, httptest.NewRequest(http.MethodPost, "/theme", nil))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if themes.current != model.ThemeDark {
		t.Errorf("theme = %q, want dark", themes.current)
	}
	if flashValue(t, w.Result()) != "" {
		t.Error("no notice expected on success")
	}
}

// TestToggleTheme_StorageErrorStillApplies は保存に失敗してもテーマが切り替わることを検証する。
func TestToggleTheme_StorageErrorStillApplies(t *testing.T) {
	themes := &mockThemeStore{
		current:   model.ThemeDark,
		toggleErr: &model.StorageError{Op: "set", Key: "theme", Err: errors.New("disk full")},
	}
	h := NewFeedHandler(newTestPages(t, themes), &mockSessionGate{authenticated: true}, &mockFeedView{}, &mockPostGetter{}, themes, nil)

	w := httptest.NewRecorder()
	h.ToggleTheme(w, httptest.NewRequest(http.MethodPost, "/theme", nil))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if themes.current != model.ThemeLight {
		t.Errorf("theme = %q, want light", themes.current)
	}
	if flashValue(t, w.Result()) == "" {
		t.Error("storage failure should leave a notice")
	}
}

// TestRender_ThemePaletteAndFlash はレイアウトにテーマと通知が反映されることを検証する。
func TestRender_ThemePaletteAndFlash(t *testing.T) {
	themes := &mockThemeStore{current: model.ThemeDark}
	h := NewFeedHandler(newTestPages(t, themes), &mockSessionGate{authenticated: true}, &mockFeedView{}, &mockPostGetter{}, themes, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "%D0%93%D0%BE%D1%82%D0%BE%D0%B2%D0%BE"})
	w := httptest.NewRecorder()
	h.Feed(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Error("layout should carry current theme")
	}
	if !strings.Contains(body, "--background: #212121") {
		t.Errorf("layout should carry dark palette, body:\n%s", body)
	}
	if !strings.Contains(body, "Світла") {
		t.Error("toggle should offer light theme")
	}
	if !strings.Contains(body, "Готово") {
		t.Error("flash notice should be rendered")
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("flash cookie should be cleared after display")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("a\n\n b"); got != "a b" {
		t.Errorf("preview collapses whitespace: got %q", got)
	}
	long := strings.Repeat("я", previewRunes+10)
	got := []rune(preview(long))
	if len(got) != previewRunes || got[len(got)-1] != '…' {
		t.Errorf("preview should truncate to %d runes with ellipsis, got %d", previewRunes, len(got))
	}
}
