package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeBackend はテスト用のバックエンドAPI。
type fakeBackend struct {
	mu      sync.Mutex
	created []string
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Token tok-123"
	}

	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Невірний логін або пароль"}`))
			return
		}
		w.Write([]byte(`{"token":"tok-123"}`))
	})
	mux.HandleFunc("/api/posts/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid token."}`))
			return
		}
		switch {
		case r.Method == http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			b.mu.Lock()
			b.created = append(b.created, body["title"])
			b.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"message":"Оголошення додано!"}`))
		case r.URL.Path == "/api/posts/7/":
			w.Write([]byte(`{"id":7,"title":"Продам чайник","content":"Майже новий","dorm_number":11}`))
		default:
			// サーバーは古い順で返す
			w.Write([]byte(`[{"id":1,"title":"Старе","content":"a"},{"id":2,"title":"Нове","content":"b"}]`))
		}
	})
	return mux
}

func (b *fakeBackend) createdTitles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...)
}

// setupCLI はバックエンドとSQLiteストアを用意し、環境変数を設定する。
func setupCLI(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	ts := httptest.NewServer(b.handler(t))
	t.Cleanup(ts.Close)

	t.Setenv("EGURTAK_API_URL", ts.URL)
	t.Setenv("EGURTAK_API_PREFIX", "/api")
	t.Setenv("EGURTAK_AUTH_SCHEME", "Token")
	t.Setenv("EGURTAK_STORE_DRIVER", "sqlite")
	t.Setenv("EGURTAK_STORE_PATH", filepath.Join(t.TempDir(), "egurtak.db"))
	t.Setenv("EGURTAK_TOKEN_KEY", "")
	t.Setenv("EGURTAK_SYSTEM_APPEARANCE", "light")
	t.Setenv("LOG_LEVEL", "error")
	return b
}

// runCLI はコマンドを実行して標準出力とエラーを返す。
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(&stdout, &stderr, args)
	return stdout.String(), err
}

func TestRun_FeedWithoutLoginShowsAlert(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "feed")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	if !strings.Contains(out, "Ви не увійшли в акаунт.") {
		t.Errorf("output should explain missing login, got:\n%s", out)
	}
}

// TestRun_LoginPersistsAcrossRuns はログインしたトークンが次回起動時にも有効であることを検証する。
func TestRun_LoginPersistsAcrossRuns(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "login", "-username", "olena", "-password", "secret")
	if err != nil {
		t.Fatalf("login failed: %v\n%s", err, out)
	}

	out, err = runCLI(t)
	if err != nil {
		t.Fatalf("feed failed: %v\n%s", err, out)
	}
	newer := strings.Index(out, "#2 Нове")
	older := strings.Index(out, "#1 Старе")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("feed should be newest first, got:\n%s", out)
	}
}

func TestRun_LoginFailureShowsServerMessage(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "login", "-username", "olena", "-password", "wrong")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	if !strings.Contains(out, "Невірний логін або пароль") {
		t.Errorf("output should contain server message, got:\n%s", out)
	}
}

func TestRun_PostDetail(t *testing.T) {
	setupCLI(t)
	if _, err := runCLI(t, "login", "-username", "olena", "-password", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := runCLI(t, "post", "7")
	if err != nil {
		t.Fatalf("post failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Продам чайник", "Майже новий", "Гуртожиток № 11"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestRun_PostInvalidIDIsUsageError(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "post", "abc")
	if err == nil || errors.Is(err, ErrReported) {
		t.Errorf("err = %v, want usage error", err)
	}
}

// TestRun_AddPostValidationSkipsBackend は未入力の投稿がバックエンドに送信されないことを検証する。
func TestRun_AddPostValidationSkipsBackend(t *testing.T) {
	b := setupCLI(t)
	if _, err := runCLI(t, "login", "-username", "olena", "-password", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := runCLI(t, "add-post", "-title", "  ", "-content", "Текст")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	if !strings.Contains(out, "Заповніть заголовок і текст") {
		t.Errorf("output should contain validation message, got:\n%s", out)
	}
	if len(b.createdTitles()) != 0 {
		t.Error("backend should not receive invalid post")
	}
}

func TestRun_AddPostSuccessReturnsToFeed(t *testing.T) {
	b := setupCLI(t)
	if _, err := runCLI(t, "login", "-username", "olena", "-password", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := runCLI(t, "add-post", "-title", "Лампа", "-content", "Робоча")
	if err != nil {
		t.Fatalf("add-post failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Оголошення додано!") {
		t.Errorf("output should contain success notice, got:\n%s", out)
	}
	if !strings.Contains(out, "Оголошення") || !strings.Contains(out, "#2 Нове") {
		t.Errorf("feed should be shown after posting, got:\n%s", out)
	}
	if got := b.createdTitles(); len(got) != 1 || got[0] != "Лампа" {
		t.Errorf("created = %v, want [Лампа]", got)
	}
}

func TestRun_AddPostMissingImage(t *testing.T) {
	b := setupCLI(t)
	if _, err := runCLI(t, "login", "-username", "olena", "-password", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	_, err := runCLI(t, "add-post", "-title", "Лампа", "-content", "Робоча", "-image", filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	if len(b.createdTitles()) != 0 {
		t.Error("backend should not be called when image cannot be read")
	}
}

func TestRun_LogoutThenProfileRequiresLogin(t *testing.T) {
	setupCLI(t)
	if _, err := runCLI(t, "login", "-username", "olena", "-password", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := runCLI(t, "profile")
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if !strings.Contains(out, "Студент") {
		t.Errorf("profile should show placeholder, got:\n%s", out)
	}

	if _, err := runCLI(t, "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := runCLI(t, "profile"); !errors.Is(err, ErrReported) {
		t.Errorf("profile after logout: err = %v, want ErrReported", err)
	}
}

// TestRun_ThemePersists はテーマ設定が次回起動時にも維持されることを検証する。
func TestRun_ThemePersists(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "theme")
	if err != nil {
		t.Fatalf("theme failed: %v", err)
	}
	if !strings.Contains(out, "Тема: світла") {
		t.Errorf("initial theme should follow system appearance, got:\n%s", out)
	}

	if _, err := runCLI(t, "theme", "toggle"); err != nil {
		t.Fatalf("theme toggle failed: %v", err)
	}

	out, err = runCLI(t, "theme")
	if err != nil {
		t.Fatalf("theme failed: %v", err)
	}
	if !strings.Contains(out, "Тема: темна") {
		t.Errorf("dark theme should survive restart, got:\n%s", out)
	}

	if _, err := runCLI(t, "theme", "sepia"); err == nil || errors.Is(err, ErrReported) {
		t.Errorf("unknown theme: err = %v, want usage error", err)
	}
}

func TestRun_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out, "add-post") {
		t.Errorf("usage should list commands, got:\n%s", out)
	}

	_, err = runCLI(t, "bogus")
	if err == nil {
		t.Fatal("unknown command should return error")
	}
	if !IsUsageError(err) {
		t.Errorf("unknown command: err = %v, want usage error", err)
	}
}

// TestRun_LogoutWithoutLogin は未ログインでのlogoutがログアウト完了を表示しないことを検証する。
func TestRun_LogoutWithoutLogin(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "logout")
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if strings.Contains(out, "Ви вийшли з акаунта.") {
		t.Errorf("logout without session should not claim success, got:\n%s", out)
	}
	if !strings.Contains(out, "Ви не увійшли в акаунт.") {
		t.Errorf("logout without session should say not logged in, got:\n%s", out)
	}
}

func TestRun_MigrateSQLite(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out, "Міграції застосовано.") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(os.Getenv("EGURTAK_STORE_PATH")); err != nil {
		t.Errorf("database file should exist: %v", err)
	}
}

func TestRun_MigrateMemoryIsNoop(t *testing.T) {
	setupCLI(t)
	t.Setenv("EGURTAK_STORE_DRIVER", "memory")

	out, err := runCLI(t, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out, "не потребує міграцій") {
		t.Errorf("output = %q", out)
	}
}
