package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/egurtak/internal/middleware"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	Login(ctx context.Context, username, password string, navigator nav.Navigator) error
	Register(ctx context.Context, reg model.Registration, navigator nav.Navigator) (*model.RegisterResult, error)
}

// AuthHandler はログイン・新規登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	pages   *Pages
	service AuthService
	gate    SessionGate
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(pages *Pages, service AuthService, g SessionGate, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		pages:   pages,
		service: service,
		gate:    g,
		logger:  logger,
	}
}

// authContent はログイン画面のテンプレートデータ。
type authContent struct {
	Username string
}

// signupContent は新規登録画面のテンプレートデータ。
type signupContent struct {
	Username   string
	DormNumber string
}

const (
	loginTitle  = "Вхід"
	signupTitle = "Реєстрація"
)

// LoginPage はログイン画面を表示する。
// GET /auth
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageAuth, pageData{
		Title:   loginTitle,
		Content: authContent{},
	})
}

// Login はログインを実行する。成功時はフィードへリダイレクトする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	navigator := middleware.NewRedirectNavigator(w, r)
	if err := h.service.Login(r.Context(), username, password, navigator); err != nil {
		h.pages.render(w, r, statusForError(err), pageAuth, pageData{
			Title:   loginTitle,
			Alert:   model.ToAlert(err),
			Content: authContent{Username: username},
		})
		return
	}
	if !navigator.Redirected() {
		http.Redirect(w, r, nav.RouteFeed, http.StatusSeeOther)
	}
}

// SignupPage は新規登録画面を表示する。
// GET /signup
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageSignup, pageData{
		Title:   signupTitle,
		Content: signupContent{},
	})
}

// Signup はアカウントを登録する。
// 応答メッセージを通知として遷移先の画面に表示する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	content := signupContent{
		Username:   r.PostFormValue("username"),
		DormNumber: strings.TrimSpace(r.PostFormValue("dorm_number")),
	}
	fail := func(err error) {
		h.pages.render(w, r, statusForError(err), pageSignup, pageData{
			Title:   signupTitle,
			Alert:   model.ToAlert(err),
			Content: content,
		})
	}

	// 寮番号は任意。未入力は0として送る
	dorm := 0
	if content.DormNumber != "" {
		n, err := strconv.Atoi(content.DormNumber)
		if err != nil || n < 0 {
			fail(&model.ValidationError{Field: "dorm_number", Message: "Вкажіть номер гуртожитку."})
			return
		}
		dorm = n
	}

	photoURI, cleanup, err := saveUpload(r, "photo")
	defer cleanup()
	if err != nil {
		h.logger.Warn("学生証写真の保存に失敗しました", slog.String("error", err.Error()))
		fail(err)
		return
	}

	// 遷移先を記録し、通知を設定してからリダイレクトする
	history := nav.NewHistory(nav.RouteSignup)
	result, err := h.service.Register(r.Context(), model.Registration{
		Username:   content.Username,
		Password:   r.PostFormValue("password"),
		DormNumber: dorm,
		PhotoURI:   photoURI,
	}, history)
	if err != nil {
		fail(err)
		return
	}

	setFlash(w, result.Message)
	http.Redirect(w, r, history.Current(), http.StatusSeeOther)
}

// Logout はトークンを削除してログイン画面へリダイレクトする。
// 削除に失敗した場合はプロフィール画面に戻る。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	navigator := middleware.NewRedirectNavigator(w, r)
	if err := h.gate.Logout(r.Context(), navigator); err != nil {
		h.logger.Error("ログアウトに失敗しました", slog.String("error", err.Error()))
		setFlash(w, model.ToAlert(err).Message)
		http.Redirect(w, r, nav.RouteProfile, http.StatusSeeOther)
		return
	}
	if !navigator.Redirected() {
		http.Redirect(w, r, nav.RouteLogin, http.StatusSeeOther)
	}
}
