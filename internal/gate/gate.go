// Package gate は画面表示前のセッション確認を提供する。
// トークンがなければログイン画面へ置き換え遷移し、あればフィードを読み込む。
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

// State はセッションゲートの状態を表す。
type State int

const (
	// StateUnknown はまだ確認していない状態。
	StateUnknown State = iota
	// StateUnauthenticated はトークンがない状態。
	StateUnauthenticated
	// StateAuthenticated はトークンがある状態。
	StateAuthenticated
)

// String はfmt.Stringerを実装する。
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionStore はゲートが使用するセッションストアのインターフェース。
type SessionStore interface {
	Get(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// FeedLoader はゲート通過時に呼び出すフィード読み込みのインターフェース。
type FeedLoader interface {
	Load(ctx context.Context) []model.Post
}

// Gate はセッションの有無で画面遷移を制御する。
type Gate struct {
	mu       sync.Mutex
	state    State
	sessions SessionStore
	loader   FeedLoader
	logger   *slog.Logger
}

// New はGateを生成する。
func New(sessions SessionStore, loader FeedLoader, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{sessions: sessions, loader: loader, logger: logger}
}

// State は現在の状態を返す。
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Check はトークンの有無だけを確認して状態を更新する。遷移や読み込みは行わない。
func (g *Gate) Check(ctx context.Context) State {
	_, ok := g.sessions.Get(ctx)
	state := StateUnauthenticated
	if ok {
		state = StateAuthenticated
	}
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return state
}

// Require はゲート付き画面に入る際のチェックを行う。
// トークンがなければログイン画面へ置き換え遷移する。フィードは読み込まない。
func (g *Gate) Require(ctx context.Context, navigator nav.Navigator) State {
	state := g.Check(ctx)
	if state == StateUnauthenticated {
		navigator.Replace(nav.RouteLogin)
	}
	return state
}

// Enter はフィード画面へのフォーカスごとに呼び出す。
// トークンがなければログイン画面へ置き換え遷移し、あればフィードを読み込む。
func (g *Gate) Enter(ctx context.Context, navigator nav.Navigator) State {
	state := g.Require(ctx, navigator)
	if state == StateAuthenticated {
		g.loader.Load(ctx)
	}
	return state
}

// Logout はトークンを削除してログイン画面へ置き換え遷移する。
// 未認証状態では何もしない。
func (g *Gate) Logout(ctx context.Context, navigator nav.Navigator) error {
	if g.Check(ctx) != StateAuthenticated {
		return nil
	}
	if err := g.sessions.Clear(ctx); err != nil {
		g.logger.Error("ログアウト時のトークン削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	g.mu.Lock()
	g.state = StateUnauthenticated
	g.mu.Unlock()

	g.logger.Info("ログアウトしました")
	navigator.Replace(nav.RouteLogin)
	return nil
}
