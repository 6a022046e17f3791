// Package composer は投稿作成画面の下書きと送信を管理する。
package composer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/egurtak/internal/media"
	"github.com/hitoshi/egurtak/internal/model"
)

// 画面に表示するメッセージ
const (
	MsgFillRequired = "Заповніть заголовок і текст"
	MsgPostAdded    = "Оголошення додано!"
)

// PostCreator は投稿を作成するインターフェース。
type PostCreator interface {
	CreatePost(ctx context.Context, draft model.Draft) (*model.PostCreated, error)
}

// Composer は1画面分の下書きを保持する。
// 送信に成功すると下書きを破棄し、失敗した場合は再送信のため保持する。
type Composer struct {
	mu     sync.Mutex
	draft  model.Draft
	client PostCreator
	picker media.Picker
	logger *slog.Logger
}

// New はComposerを生成する。pickerがnilの場合PickImageは使用できない。
func New(client PostCreator, picker media.Picker, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{client: client, picker: picker, logger: logger}
}

// SetTitle はタイトルを設定する。
func (c *Composer) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Title = title
}

// SetContent は本文を設定する。
func (c *Composer) SetContent(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Content = content
}

// AttachImage は添付画像のローカルURIを設定する。空文字列で添付を解除する。
func (c *Composer) AttachImage(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.LocalImageURI = uri
}

// PickImage はピッカーで画像を選択して添付する。
// キャンセルされた場合は下書きを変更せずnilを返す。
func (c *Composer) PickImage(ctx context.Context) error {
	if c.picker == nil {
		return model.ErrPickCanceled
	}
	uri, err := c.picker.Pick(ctx)
	if errors.Is(err, model.ErrPickCanceled) {
		return nil
	}
	if err != nil {
		c.logger.Warn("画像の選択に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	c.AttachImage(uri)
	return nil
}

// Draft は現在の下書きのコピーを返す。
func (c *Composer) Draft() model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Reset は下書きを破棄する。
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = model.Draft{}
}

// Validate は送信前のローカル検証を行う。
// タイトルと本文は空白のみも未入力として扱う。
func Validate(d model.Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return &model.ValidationError{Field: "title", Message: MsgFillRequired}
	}
	if strings.TrimSpace(d.Content) == "" {
		return &model.ValidationError{Field: "content", Message: MsgFillRequired}
	}
	return nil
}

// Submit は下書きを送信する。
// 検証エラーの場合はネットワーク呼び出しを行わない。
// 成功時は下書きを破棄する。呼び出し元はフィード画面へ戻り再読み込みする。
func (c *Composer) Submit(ctx context.Context) (*model.PostCreated, error) {
	draft := c.Draft()
	if err := Validate(draft); err != nil {
		return nil, err
	}

	result, err := c.client.CreatePost(ctx, draft)
	if err != nil {
		c.logger.Error("投稿の作成に失敗しました",
			slog.Bool("with_image", draft.HasImage()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.mu.Lock()
	// 送信中に編集された場合は新しい下書きを残す
	if c.draft == draft {
		c.draft = model.Draft{}
	}
	c.mu.Unlock()

	c.logger.Info("投稿を作成しました",
		slog.Bool("with_image", draft.HasImage()),
	)
	if result.Message == "" {
		result.Message = MsgPostAdded
	}
	return result, nil
}
