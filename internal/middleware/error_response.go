package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/egurtak/internal/model"
)

// ErrorResponseBody はJSONエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// 画像プロキシやミドルウェアなど、HTMLを返さない経路で使用する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, alert *model.Alert) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     alert.Code,
		Title:    alert.Title,
		Message:  alert.Message,
		Category: alert.Category,
		Action:   alert.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.Alert{
		Code:     model.ErrCodeInternal,
		Title:    "Помилка",
		Message:  "Щось пішло не так.",
		Category: "system",
		Action:   "Спробуйте пізніше.",
	})
}
