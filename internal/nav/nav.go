// Package nav は画面遷移の抽象化を提供する。
package nav

import (
	"fmt"
	"sync"
)

// 画面のルート
const (
	RouteFeed    = "/"
	RouteLogin   = "/auth"
	RouteSignup  = "/signup"
	RouteAddPost = "/add-post"
	RouteProfile = "/profile"
)

// RoutePost は投稿詳細画面のルートを返す。
func RoutePost(id int64) string {
	return fmt.Sprintf("/posts/%d", id)
}

// Navigator は画面遷移を行うインターフェース。
type Navigator interface {
	// Push は履歴に画面を積んで遷移する。
	Push(route string)
	// Replace は現在の画面を置き換えて遷移する。戻る操作で元の画面には戻れない。
	Replace(route string)
	// Back は一つ前の画面に戻る。
	Back()
}

// History はスタックで遷移履歴を保持するNavigator。
// CLIの画面ループとテストで使用する。
type History struct {
	mu    sync.Mutex
	stack []string
}

// NewHistory は初期画面を持つHistoryを生成する。
func NewHistory(initial string) *History {
	return &History{stack: []string{initial}}
}

// Push は履歴に画面を積む。
func (h *History) Push(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, route)
}

// Replace は履歴全体を破棄して画面を置き換える。
func (h *History) Replace(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = []string{route}
}

// Back は一つ前の画面に戻る。履歴が1件の場合は何もしない。
func (h *History) Back() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) > 1 {
		h.stack = h.stack[:len(h.stack)-1]
	}
}

// Current は現在の画面を返す。
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack[len(h.stack)-1]
}

// CanGoBack は戻れる画面があるかを返す。
func (h *History) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack) > 1
}

var _ Navigator = (*History)(nil)
