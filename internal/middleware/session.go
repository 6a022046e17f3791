// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/egurtak/internal/gate"
	"github.com/hitoshi/egurtak/internal/nav"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// SessionGate はゲート付き画面の入場チェックに必要なインターフェース。
// gate.Gateの部分集合として定義する。
type SessionGate interface {
	Require(ctx context.Context, navigator nav.Navigator) gate.State
}

// NewSessionGateMiddleware はセッショントークンの有無を確認し、
// 未ログインのリクエストをログイン画面へ303でリダイレクトするミドルウェアを返す。
func NewSessionGateMiddleware(g SessionGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			navigator := NewRedirectNavigator(w, r)
			if g.Require(r.Context(), navigator) != gate.StateAuthenticated {
				if !navigator.Redirected() {
					http.Redirect(w, r, nav.RouteLogin, http.StatusSeeOther)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectNavigator はnav.NavigatorをHTTPリダイレクトで実装する。
// 1リクエストにつき最初の遷移だけが有効になる。
type RedirectNavigator struct {
	w          http.ResponseWriter
	r          *http.Request
	redirected bool
}

// compile-time interface check
var _ nav.Navigator = (*RedirectNavigator)(nil)

// NewRedirectNavigator はリクエストに紐づくRedirectNavigatorを生成する。
func NewRedirectNavigator(w http.ResponseWriter, r *http.Request) *RedirectNavigator {
	return &RedirectNavigator{w: w, r: r}
}

// Push は指定ルートへ303でリダイレクトする。
func (n *RedirectNavigator) Push(route string) {
	n.redirect(route)
}

// Replace は指定ルートへ303でリダイレクトする。
// ブラウザの履歴はPRGパターンで置き換わるため、Pushと同じ動作になる。
func (n *RedirectNavigator) Replace(route string) {
	n.redirect(route)
}

// Back はフィードへリダイレクトする。
func (n *RedirectNavigator) Back() {
	n.redirect(nav.RouteFeed)
}

// Redirected はリダイレクト済みかを返す。
func (n *RedirectNavigator) Redirected() bool {
	return n.redirected
}

func (n *RedirectNavigator) redirect(route string) {
	if n.redirected {
		return
	}
	n.redirected = true
	http.Redirect(n.w, n.r, route, http.StatusSeeOther)
}
