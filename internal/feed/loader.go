// Package feed は掲示板の投稿一覧の読み込みと表示状態を管理する。
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/egurtak/internal/metrics"
	"github.com/hitoshi/egurtak/internal/model"
)

// 読み込み結果のメトリクスラベル
const (
	resultOK        = "ok"
	resultShape     = "unexpected_shape"
	resultError     = "error"
	resultDiscarded = "discarded"
)

// PostLister は投稿一覧を取得するインターフェース。
type PostLister interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
}

// Loader は投稿一覧を新しい順で保持する。
// 読み込み中も前回の一覧を返し続け、新しいデータが届いた時点で置き換える。
type Loader struct {
	mu         sync.Mutex
	client     PostLister
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	posts      []model.Post
	lastErr    error
	loading    bool
	refreshing bool
	generation uint64
}

// NewLoader はLoaderを生成する。
func NewLoader(client PostLister, logger *slog.Logger, m metrics.MetricsCollector) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Loader{client: client, logger: logger, metrics: m, posts: []model.Post{}}
}

// Load は投稿一覧を取得し、サーバーの返却順を反転して新しい順で返す。
// 取得に失敗した場合はエラーをログに記録し、一覧を空にする。
// ctxがキャンセルされた後に届いた応答や、より新しい読み込みに追い越された応答は破棄する。
func (l *Loader) Load(ctx context.Context) []model.Post {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.loading = true
	l.mu.Unlock()

	posts, err := l.client.ListPosts(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen == l.generation {
		l.loading = false
		l.refreshing = false
	}

	if ctx.Err() != nil || gen != l.generation {
		l.logger.Debug("古いフィード応答を破棄しました",
			slog.Uint64("generation", gen),
			slog.Uint64("latest_generation", l.generation),
		)
		l.metrics.RecordFeedLoad(resultDiscarded, len(l.posts))
		return l.snapshot()
	}

	if err != nil {
		var shapeErr *model.ShapeError
		if errors.As(err, &shapeErr) {
			l.logger.Warn("フィード応答が配列ではないため空として扱います",
				slog.String("error", err.Error()),
			)
			l.metrics.RecordFeedLoad(resultShape, 0)
			// 形式の異常は空のフィードとして扱う
			l.lastErr = nil
		} else {
			l.logger.Error("フィードの読み込みに失敗しました",
				slog.String("error", err.Error()),
			)
			l.metrics.RecordFeedLoad(resultError, 0)
			l.lastErr = err
		}
		l.posts = []model.Post{}
		return l.snapshot()
	}

	l.posts = newestFirst(posts)
	l.lastErr = nil
	l.metrics.RecordFeedLoad(resultOK, len(l.posts))
	l.logger.Info("フィードを読み込みました",
		slog.Int("posts_count", len(l.posts)),
	)
	return l.snapshot()
}

// Refresh は手動更新として再読み込みする。
// 読み込み完了まではPostsが前回の一覧を返す。
func (l *Loader) Refresh(ctx context.Context) []model.Post {
	l.mu.Lock()
	l.refreshing = true
	l.mu.Unlock()
	return l.Load(ctx)
}

// Posts は現在表示中の投稿一覧のコピーを返す。
func (l *Loader) Posts() []model.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Loading は読み込み中かを返す。
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Refreshing は手動更新中かを返す。
func (l *Loader) Refreshing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshing
}

// LastError は直近の読み込み失敗の原因を返す。成功時はnil。
// 401の検出など、画面側で再ログインを促す判断に使用する。
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader) snapshot() []model.Post {
	out := make([]model.Post, len(l.posts))
	copy(out, l.posts)
	return out
}

// newestFirst はサーバーの返却順を反転したコピーを返す。
func newestFirst(posts []model.Post) []model.Post {
	out := make([]model.Post, len(posts))
	for i, p := range posts {
		out[len(posts)-1-i] = p
	}
	return out
}
