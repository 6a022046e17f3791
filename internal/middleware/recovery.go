package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// panicPage はHTMLを要求するブラウザに返すエラーページ。
// テンプレートの描画自体が失敗した可能性があるため、固定文字列で返す。
const panicPage = `<!DOCTYPE html>
<html lang="uk"><head><meta charset="utf-8"><title>Помилка</title></head>
<body><h1>Щось пішло не так.</h1><p><a href="/">Повернутися до оголошень</a></p></body></html>
`

// NewRecoveryMiddleware はpanic発生時にプロセスを落とさず500を返すミドルウェアを生成する。
// ブラウザからの画面遷移には固定のHTMLページ、それ以外には統一JSONエラーを返す。
// レスポンスの書き込みが始まっていた場合はボディを追加しない。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("ハンドラーでpanicが発生しました",
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Bool("headers_sent", rec.written),
					slog.String("stack", string(debug.Stack())),
				)
				if rec.written {
					return
				}
				if wantsHTML(r) {
					w.Header().Set("Content-Type", "text/html; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(panicPage))
					return
				}
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// wantsHTML はリクエストがブラウザの画面遷移かを判定する。
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
