// Package auth はログインと新規登録のフローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

// 画面に表示するメッセージ
const (
	MsgFillAllFields  = "Заповніть усі поля."
	MsgAccountCreated = "Акаунт створено! Увійдіть."
)

// Backend は認証APIのインターフェース。
type Backend interface {
	Login(ctx context.Context, username, password string) (*model.LoginResult, error)
	Register(ctx context.Context, reg model.Registration) (*model.RegisterResult, error)
}

// SessionStore はトークンを保存するストアのインターフェース。
type SessionStore interface {
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	backend  Backend
	sessions SessionStore
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(backend Backend, sessions SessionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, sessions: sessions, logger: logger}
}

// Login はログインしてトークンを保存し、フィード画面へ置き換え遷移する。
// 失効した古いトークンがログイン要求に付与されないよう、先に削除する。
func (s *Service) Login(ctx context.Context, username, password string, navigator nav.Navigator) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &model.ValidationError{Field: "username", Message: MsgFillAllFields}
	}
	if password == "" {
		return &model.ValidationError{Field: "password", Message: MsgFillAllFields}
	}

	s.clearStaleToken(ctx)

	result, err := s.backend.Login(ctx, username, password)
	if err != nil {
		s.logger.Warn("ログインに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := s.sessions.Set(ctx, result.Token); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}

	s.logger.Info("ログインしました", slog.String("username", username))
	navigator.Replace(nav.RouteFeed)
	return nil
}

// Register はアカウントを登録する。
// 応答にトークンが含まれる場合はそのままログインしてフィード画面へ、
// 含まれない場合はログイン画面へ置き換え遷移する。
func (s *Service) Register(ctx context.Context, reg model.Registration, navigator nav.Navigator) (*model.RegisterResult, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	switch {
	case reg.Username == "":
		return nil, &model.ValidationError{Field: "username", Message: MsgFillAllFields}
	case reg.Password == "":
		return nil, &model.ValidationError{Field: "password", Message: MsgFillAllFields}
	}

	s.clearStaleToken(ctx)

	result, err := s.backend.Register(ctx, reg)
	if err != nil {
		s.logger.Warn("アカウント登録に失敗しました",
			slog.String("username", reg.Username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if result.Message == "" {
		result.Message = MsgAccountCreated
	}

	s.logger.Info("アカウントを登録しました",
		slog.String("username", reg.Username),
		slog.Int("dorm_number", reg.DormNumber),
	)

	if result.Token != "" {
		if err := s.sessions.Set(ctx, result.Token); err != nil {
			return result, fmt.Errorf("failed to store session token: %w", err)
		}
		navigator.Replace(nav.RouteFeed)
		return result, nil
	}

	navigator.Replace(nav.RouteLogin)
	return result, nil
}

// clearStaleToken は保存済みのトークンを削除する。失敗してもログインは続行する。
func (s *Service) clearStaleToken(ctx context.Context) {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Warn("古いトークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
