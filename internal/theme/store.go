// Package theme は表示テーマの保持と永続化、配色を提供する。
package theme

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/repository"
)

// PreferenceKey はテーマ設定を保存するキー名。
const PreferenceKey = "user-theme"

// Store は現在のテーマを保持し、変更を購読者に通知する。
// プロセス起動時に1回生成し、すべての画面で共有する。
type Store struct {
	mu      sync.Mutex
	repo    repository.KVRepository
	logger  *slog.Logger
	current model.Theme
	subs    map[int]chan model.Theme
	nextID  int
}

// NewStore はStoreを生成する。
// 初期値は保存済みの値、なければシステムの外観、それもなければlightとする。
func NewStore(ctx context.Context, repo repository.KVRepository, appearance Appearance, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		repo:   repo,
		logger: logger,
		subs:   make(map[int]chan model.Theme),
	}
	s.current = s.initial(ctx, appearance)
	return s
}

func (s *Store) initial(ctx context.Context, appearance Appearance) model.Theme {
	value, found, err := s.repo.Get(ctx, PreferenceKey)
	switch {
	case err != nil:
		s.logger.Warn("テーマ設定の読み込みに失敗しました",
			slog.String("error", (&model.StorageError{Op: "get", Key: PreferenceKey, Err: err}).Error()),
		)
	case found:
		if t, ok := model.ParseTheme(value); ok {
			return t
		}
		s.logger.Warn("保存済みのテーマ設定が不正なため無視します",
			slog.String("value", value),
		)
	}

	if appearance != nil {
		if t, ok := appearance.SystemTheme(); ok {
			return t
		}
	}
	return model.ThemeLight
}

// Get は現在のテーマを返す。
func (s *Store) Get() model.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Palette は現在のテーマの配色を返す。
func (s *Store) Palette() Palette {
	return PaletteFor(s.Get())
}

// Set はテーマを永続化してから購読者に通知する。
// 永続化に失敗した場合もメモリ上の値は更新し、*model.StorageErrorを返す。
func (s *Store) Set(ctx context.Context, t model.Theme) error {
	parsed, ok := model.ParseTheme(string(t))
	if !ok {
		return &model.ValidationError{Field: "theme", Message: "Невідома тема: " + string(t)}
	}

	var storeErr error
	if err := s.repo.Set(ctx, PreferenceKey, string(parsed)); err != nil {
		s.logger.Error("テーマ設定の保存に失敗しました",
			slog.String("theme", string(parsed)),
			slog.String("error", err.Error()),
		)
		storeErr = &model.StorageError{Op: "set", Key: PreferenceKey, Err: err}
	}

	s.mu.Lock()
	s.current = parsed
	for _, ch := range s.subs {
		publishLatest(ch, parsed)
	}
	s.mu.Unlock()

	return storeErr
}

// Toggle はlightとdarkを切り替え、新しいテーマを返す。
func (s *Store) Toggle(ctx context.Context) (model.Theme, error) {
	next := s.Get().Opposite()
	return next, s.Set(ctx, next)
}

// Subscribe はテーマ変更を受け取るチャネルと購読解除関数を返す。
// 受信が遅れた場合は最新の値だけが残る。
func (s *Store) Subscribe() (<-chan model.Theme, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan model.Theme, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publishLatest はバッファ1のチャネルに最新値を入れる。
// 送信側はStore.muで直列化されている。
func publishLatest(ch chan model.Theme, t model.Theme) {
	select {
	case ch <- t:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- t
}
