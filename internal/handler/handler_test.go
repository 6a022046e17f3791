package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/egurtak/internal/gate"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
	"github.com/hitoshi/egurtak/internal/security"
	"github.com/hitoshi/egurtak/internal/theme"
)

// --- モック定義 ---

// mockSessionGate はSessionGateのモック実装。
// authenticatedがfalseの場合、Enter/Requireはログイン画面へ遷移する。
type mockSessionGate struct {
	authenticated bool
	entered       int
	logoutFn      func(ctx context.Context, navigator nav.Navigator) error
}

func (m *mockSessionGate) Enter(ctx context.Context, navigator nav.Navigator) gate.State {
	m.entered++
	return m.Require(ctx, navigator)
}

func (m *mockSessionGate) Require(ctx context.Context, navigator nav.Navigator) gate.State {
	if !m.authenticated {
		navigator.Replace(nav.RouteLogin)
		return gate.StateUnauthenticated
	}
	return gate.StateAuthenticated
}

func (m *mockSessionGate) Logout(ctx context.Context, navigator nav.Navigator) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, navigator)
	}
	m.authenticated = false
	navigator.Replace(nav.RouteLogin)
	return nil
}

// mockFeedView はFeedViewのモック実装。
type mockFeedView struct {
	posts   []model.Post
	lastErr error
}

func (m *mockFeedView) Posts() []model.Post { return m.posts }
func (m *mockFeedView) LastError() error    { return m.lastErr }

// mockPostGetter はPostGetterのモック実装。
type mockPostGetter struct {
	getPostFn func(ctx context.Context, id int64) (*model.Post, error)
}

func (m *mockPostGetter) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, id)
	}
	return nil, nil
}

// mockThemeStore はThemeStoreのモック実装。
type mockThemeStore struct {
	current   model.Theme
	toggleErr error
}

func (m *mockThemeStore) Get() model.Theme       { return m.current }
func (m *mockThemeStore) Palette() theme.Palette { return theme.PaletteFor(m.current) }
func (m *mockThemeStore) Toggle(ctx context.Context) (model.Theme, error) {
	m.current = m.current.Opposite()
	return m.current, m.toggleErr
}

// mockAuthService はAuthServiceのモック実装。
type mockAuthService struct {
	loginFn    func(ctx context.Context, username, password string, navigator nav.Navigator) error
	registerFn func(ctx context.Context, reg model.Registration, navigator nav.Navigator) (*model.RegisterResult, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string, navigator nav.Navigator) error {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password, navigator)
	}
	navigator.Replace(nav.RouteFeed)
	return nil
}

func (m *mockAuthService) Register(ctx context.Context, reg model.Registration, navigator nav.Navigator) (*model.RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, reg, navigator)
	}
	navigator.Replace(nav.RouteLogin)
	return &model.RegisterResult{Message: "Акаунт створено! Увійдіть."}, nil
}

// mockPostCreator はcomposer.PostCreatorのモック実装。
type mockPostCreator struct {
	createPostFn func(ctx context.Context, draft model.Draft) (*model.PostCreated, error)
	calls        int
}

func (m *mockPostCreator) CreatePost(ctx context.Context, draft model.Draft) (*model.PostCreated, error) {
	m.calls++
	if m.createPostFn != nil {
		return m.createPostFn(ctx, draft)
	}
	return &model.PostCreated{Message: "Оголошення додано!"}, nil
}

// --- テストヘルパー ---

// newTestPages はテスト用のPagesを生成する。
func newTestPages(t *testing.T, themes ThemeStore) *Pages {
	t.Helper()
	if themes == nil {
		themes = &mockThemeStore{current: model.ThemeLight}
	}
	pages, err := NewPages(themes, security.NewContentSanitizer(), nil)
	if err != nil {
		t.Fatalf("NewPages がエラーを返した: %v", err)
	}
	return pages
}

// multipartRequest はフォーム値とファイルを含むmultipartリクエストを生成する。
// filesのキーはフィールド名、値は[ファイル名, 内容]。
func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(f[1]))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// formRequest はURLエンコードされたフォームのPOSTリクエストを生成する。
func formRequest(target string, form string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// flashValue はレスポンスに設定された通知Cookieの値を返す。
func flashValue(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == flashCookieName && c.MaxAge > 0 {
			msg, err := url.QueryUnescape(c.Value)
			if err != nil {
				t.Fatalf("flash cookie is not escaped: %v", err)
			}
			return msg
		}
	}
	return ""
}
