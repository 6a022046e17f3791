// Package session はセッショントークンの永続化を提供する。
package session

import (
	"context"
	"log/slog"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/repository"
)

// TokenKey はセッショントークンを保存するキー名。
const TokenKey = "userToken"

// Store はセッショントークンを1件だけ保持する永続ストア。
// トークンが存在しないことがログアウト状態の唯一の判定条件となる。
type Store struct {
	repo   repository.KVRepository
	logger *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(repo repository.KVRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, logger: logger}
}

// Get は保存済みのトークンを返す。
// ストレージ障害時は警告ログを出力し、トークンなしとして扱う。
func (s *Store) Get(ctx context.Context) (string, bool) {
	token, found, err := s.repo.Get(ctx, TokenKey)
	if err != nil {
		s.logger.Warn("セッションストレージが利用できないため未ログインとして扱います",
			slog.String("error", (&model.StorageError{Op: "get", Key: TokenKey, Err: err}).Error()),
		)
		return "", false
	}
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// Set はトークンを保存する。既存のトークンは上書きされる。
func (s *Store) Set(ctx context.Context, token string) error {
	if err := s.repo.Set(ctx, TokenKey, token); err != nil {
		return &model.StorageError{Op: "set", Key: TokenKey, Err: err}
	}
	return nil
}

// Clear はトークンを削除する。
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, TokenKey); err != nil {
		return &model.StorageError{Op: "clear", Key: TokenKey, Err: err}
	}
	return nil
}

// Token はAPIクライアントのTokenSourceとしてトークンを返す。
func (s *Store) Token(ctx context.Context) (string, bool) {
	return s.Get(ctx)
}
