package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/egurtak/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// トークンはテンプレートの隠しフィールドで渡すため、HttpOnlyにする。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はスクリプトからの送信用ヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// CSRFFormField はHTMLフォームでCSRFトークンを送信する隠しフィールドの名前。
	CSRFFormField = "csrf_token"

	csrfCookieMaxAge = 24 * 60 * 60

	// multipartMemory はmultipart解析時にメモリへ保持する上限。超過分は一時ファイルになる。
	multipartMemory = 8 << 20
)

var csrfTokenContextKey = contextKey("csrf_token")

// csrfRejected はトークン検証に失敗したときの通知。
// 画面を開いたまま時間が経つとCookieが失効するため、再読み込みを促す。
var csrfRejected = &model.Alert{
	Code:     "CSRF_REJECTED",
	Title:    "Помилка",
	Message:  "Сторінка застаріла.",
	Category: "auth",
	Action:   "Оновіть сторінку та надішліть форму ще раз.",
}

// CSRFToken はフォームに埋め込むCSRFトークンを返す。
// CSRFミドルウェアを通過していない場合は空文字列。
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はdouble-submit cookie方式のCSRFミドルウェアを返す。
// GET/HEAD/OPTIONSではCookieを発行してトークンをコンテキストに載せる。
// それ以外のメソッドはCookieとフォームフィールド（またはヘッダー）の一致を要求する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				token := ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				rejectCSRF(w, r, "missing cookie token")
				return
			}

			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						WriteErrorResponse(w, http.StatusRequestEntityTooLarge, &model.Alert{
							Code:     model.ErrCodeValidation,
							Title:    "Помилка",
							Message:  "Файл завеликий.",
							Category: "validation",
							Action:   "Оберіть фото меншого розміру.",
						})
						return
					}
				}
				submitted = r.PostFormValue(CSRFFormField)
			}
			if submitted == "" {
				rejectCSRF(w, r, "missing request token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
				rejectCSRF(w, r, "token mismatch")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, cookie.Value)))
		})
	}
}

// NewCSRFTokenHandler はGET /csrf-tokenのハンドラーを返す。
// 既存のCookieがあればそのトークンを、なければ新規発行したトークンをJSONで返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ensureCSRFCookie(w, r, config)
		if token == "" {
			WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

// rejectCSRF は検証失敗を記録し、403を返す。
func rejectCSRF(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("CSRF検証に失敗しました",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)
	WriteErrorResponse(w, http.StatusForbidden, csrfRejected)
}

// parseForm はContent-Typeに応じてフォームを解析する。
// 投稿と登録のフォームは写真を含むmultipartで送られる。
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

// ensureCSRFCookie はCSRFトークンCookieが未設定なら発行し、有効なトークンを返す。
// 生成に失敗した場合は空文字列。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		slog.Error("CSRFトークンの生成に失敗しました", slog.String("error", err.Error()))
		return ""
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}
