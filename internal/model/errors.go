// Package model はドメインモデルを定義する。
package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Alert はユーザーに表示するエラー通知の統一フォーマットを表す。
// 原因カテゴリと対処方法を含む。
type Alert struct {
	Code     string // エラーコード
	Title    string // 通知のタイトル
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, http, storage, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (a *Alert) Error() string {
	return fmt.Sprintf("[%s] %s", a.Code, a.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeTokenRejected      = "TOKEN_REJECTED"
	ErrCodeHTTPFailed         = "HTTP_FAILED"
	ErrCodeNetworkFailed      = "NETWORK_FAILED"
	ErrCodeUnexpectedResponse = "UNEXPECTED_RESPONSE"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeMediaUnavailable   = "MEDIA_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// GenericHTTPMessage はレスポンスからメッセージを抽出できない場合の汎用メッセージ。
const GenericHTTPMessage = "Помилка підключення."

var (
	// ErrUnauthenticated はセッショントークンが存在しないことを表す。
	ErrUnauthenticated = errors.New("no session token")
	// ErrPickCanceled はメディアピッカーで画像が選択されなかったことを表す。
	ErrPickCanceled = errors.New("media pick canceled")
	// ErrMediaPermission はメディアへのアクセスが許可されていないことを表す。
	ErrMediaPermission = errors.New("media access denied")
)

// ValidationError は送信前のローカル検証エラーを表す。
// ネットワーク呼び出しは行われない。
type ValidationError struct {
	Field   string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// HTTPError はバックエンド呼び出しの失敗を表す。
// ネットワーク障害の場合Statusは0になる。
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("request failed: %s: %v", e.Message, e.Err)
		}
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsUnauthorized はエラーがHTTP 401によるものかを判定する。
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized
}

// StorageError は永続ストレージの操作失敗を表す。
type StorageError struct {
	Op  string
	Key string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ShapeError はレスポンスが期待した形式でないことを表す。
type ShapeError struct {
	What   string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected %s: %s", e.What, e.Reason)
}

// ToAlert はエラーをユーザー向け通知に変換する。
// nilの場合はnilを返す。
func ToAlert(err error) *Alert {
	if err == nil {
		return nil
	}

	var alert *Alert
	if errors.As(err, &alert) {
		return alert
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return &Alert{
			Code:     ErrCodeValidation,
			Title:    "Помилка",
			Message:  validationErr.Message,
			Category: "validation",
			Action:   "Заповніть обов'язкові поля та спробуйте ще раз.",
		}
	}

	if errors.Is(err, ErrUnauthenticated) {
		return &Alert{
			Code:     ErrCodeUnauthenticated,
			Title:    "Потрібен вхід",
			Message:  "Ви не увійшли в акаунт.",
			Category: "auth",
			Action:   "Увійдіть, щоб переглядати оголошення.",
		}
	}

	if IsUnauthorized(err) {
		return &Alert{
			Code:     ErrCodeTokenRejected,
			Title:    "Потрібен вхід",
			Message:  "Токен недійсний, треба перелогінитись.",
			Category: "auth",
			Action:   "Вийдіть з акаунта та увійдіть знову.",
		}
	}

	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		return &Alert{
			Code:     ErrCodeUnexpectedResponse,
			Title:    "Помилка",
			Message:  "Сервер повернув некоректну відповідь.",
			Category: "http",
			Action:   "Спробуйте пізніше.",
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		msg := httpErr.Message
		if msg == "" {
			msg = GenericHTTPMessage
		}
		code := ErrCodeHTTPFailed
		if httpErr.Status == 0 {
			code = ErrCodeNetworkFailed
		}
		return &Alert{
			Code:     code,
			Title:    "Помилка",
			Message:  msg,
			Category: "http",
			Action:   "Перевірте підключення та спробуйте ще раз.",
		}
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return &Alert{
			Code:     ErrCodeStorageUnavailable,
			Title:    "Помилка",
			Message:  "Не вдалося зберегти дані на пристрої.",
			Category: "storage",
			Action:   "Перевірте налаштування сховища та спробуйте ще раз.",
		}
	}

	if errors.Is(err, ErrMediaPermission) {
		return &Alert{
			Code:     ErrCodeMediaUnavailable,
			Title:    "Увага",
			Message:  "Потрібен дозвіл на доступ до галереї!",
			Category: "media",
			Action:   "Оберіть файл, який можна прочитати.",
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Alert{
			Code:     ErrCodeNetworkFailed,
			Title:    "Помилка",
			Message:  GenericHTTPMessage,
			Category: "http",
			Action:   "Спробуйте ще раз.",
		}
	}

	return &Alert{
		Code:     ErrCodeInternal,
		Title:    "Помилка",
		Message:  "Щось пішло не так.",
		Category: "system",
		Action:   "Спробуйте пізніше.",
	}
}
