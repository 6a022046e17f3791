package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/hitoshi/egurtak/internal/composer"
	"github.com/hitoshi/egurtak/internal/gate"
	"github.com/hitoshi/egurtak/internal/media"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/nav"
)

// screen はCLIの1画面分の処理。historyは画面遷移を記録する。
type screen func(ctx context.Context, c *Container, history *nav.History, args []string) error

var screens = map[Command]screen{
	CommandFeed:     feedScreen,
	CommandPost:     postScreen,
	CommandAddPost:  addPostScreen,
	CommandLogin:    loginScreen,
	CommandRegister: registerScreen,
	CommandLogout:   logoutScreen,
	CommandProfile:  profileScreen,
	CommandTheme:    themeScreen,
}

// runScreen はサブコマンドに対応する画面を実行する。
// エラーは通知として描画し、ErrReportedを返す。
func runScreen(ctx context.Context, c *Container, cmd Command, args []string) error {
	run, ok := screens[cmd]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmd)
	}

	updates, unsubscribe := c.Themes.Subscribe()
	defer unsubscribe()
	followCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.Renderer.Follow(followCtx, updates)

	history := nav.NewHistory(initialRoute(cmd))
	if err := run(ctx, c, history, args); err != nil {
		var flagErr *usageError
		if errors.As(err, &flagErr) {
			return err
		}
		c.Logger.Debug("画面の処理に失敗しました",
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()),
		)
		if rerr := c.Renderer.Alert(model.ToAlert(err)); rerr != nil {
			return fmt.Errorf("failed to render alert: %w", rerr)
		}
		return ErrReported
	}
	return nil
}

// initialRoute はサブコマンドに対応する画面のルートを返す。
func initialRoute(cmd Command) string {
	switch cmd {
	case CommandAddPost:
		return nav.RouteAddPost
	case CommandLogin:
		return nav.RouteLogin
	case CommandRegister:
		return nav.RouteSignup
	case CommandProfile, CommandLogout:
		return nav.RouteProfile
	default:
		return nav.RouteFeed
	}
}

// usageError は引数の誤りを表す。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// IsUsageError はエラーが引数の誤りによるものかを判定する。
func IsUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// newFlagSet はエラー出力を抑制したFlagSetを生成する。
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseFlags は引数を解析し、誤りをusageErrorとして返す。
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return &usageError{msg: fmt.Sprintf("%s: %v", fs.Name(), err)}
	}
	return nil
}

// requireSession はゲートを通過できない場合に未ログインエラーを返す。
// ゲートはログイン画面へ置き換え遷移する。
func requireSession(ctx context.Context, c *Container, history *nav.History) error {
	c.Gate.Require(ctx, history)
	if history.Current() == nav.RouteLogin {
		return model.ErrUnauthenticated
	}
	return nil
}

// feedScreen はフィード画面を表示する。
func feedScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	c.Gate.Enter(ctx, history)
	if history.Current() == nav.RouteLogin {
		return model.ErrUnauthenticated
	}
	return renderFeed(c)
}

// renderFeed は読み込み済みの投稿一覧を描画する。
// 読み込み失敗時は空の一覧を表示し、401の場合のみ再ログインを促す。
func renderFeed(c *Container) error {
	if err := c.Renderer.Feed(c.Loader.Posts(), c.Themes.Get()); err != nil {
		return err
	}
	if err := c.Loader.LastError(); err != nil && model.IsUnauthorized(err) {
		return c.Renderer.Alert(model.ToAlert(err))
	}
	return nil
}

// postScreen は投稿詳細画面を表示する。
func postScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "post: expected exactly one post id"}
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return &usageError{msg: fmt.Sprintf("post: invalid id %q", args[0])}
	}
	if err := requireSession(ctx, c, history); err != nil {
		return err
	}
	history.Push(nav.RoutePost(id))

	post, err := c.Client.GetPost(ctx, id)
	if err != nil {
		return err
	}
	return c.Renderer.Post(*post)
}

// addPostScreen は投稿を作成し、成功時はフィードへ戻って再読み込みする。
func addPostScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	fs := newFlagSet(string(CommandAddPost))
	title := fs.String("title", "", "заголовок")
	content := fs.String("content", "", "текст")
	image := fs.String("image", "", "шлях до фото")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireSession(ctx, c, history); err != nil {
		return err
	}

	draft := composer.New(c.Client, media.StaticPicker{Path: *image}, c.Logger)
	draft.SetTitle(*title)
	draft.SetContent(*content)
	if *image != "" {
		if err := draft.PickImage(ctx); err != nil {
			return err
		}
	}

	result, err := draft.Submit(ctx)
	if err != nil {
		return err
	}
	if err := c.Renderer.Notice(result.Message); err != nil {
		return err
	}

	history.Back()
	return feedScreen(ctx, c, history, nil)
}

// loginScreen はログインしてフィードを表示する。
func loginScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	fs := newFlagSet(string(CommandLogin))
	username := fs.String("username", "", "ім'я користувача")
	password := fs.String("password", "", "пароль")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := c.Auth.Login(ctx, *username, *password, history); err != nil {
		return err
	}
	return feedScreen(ctx, c, history, nil)
}

// registerScreen はアカウントを登録する。
// トークンが返された場合はそのままフィードを表示する。
func registerScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	fs := newFlagSet(string(CommandRegister))
	username := fs.String("username", "", "ім'я користувача")
	password := fs.String("password", "", "пароль")
	dorm := fs.Int("dorm", 0, "номер гуртожитку")
	photo := fs.String("photo", "", "фото студентського")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	reg := model.Registration{
		Username:   *username,
		Password:   *password,
		DormNumber: *dorm,
	}
	if *photo != "" {
		uri, err := media.StaticPicker{Path: *photo}.Pick(ctx)
		if err != nil {
			return err
		}
		reg.PhotoURI = uri
	}

	result, err := c.Auth.Register(ctx, reg, history)
	if err != nil {
		return err
	}
	if err := c.Renderer.Notice(result.Message); err != nil {
		return err
	}
	if history.Current() == nav.RouteFeed {
		return feedScreen(ctx, c, history, nil)
	}
	return nil
}

// logoutScreen はトークンを削除する。未ログインなら何も削除せずその旨を表示する。
func logoutScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	if c.Gate.Check(ctx) != gate.StateAuthenticated {
		return c.Renderer.Notice("Ви не увійшли в акаунт.")
	}
	if err := c.Gate.Logout(ctx, history); err != nil {
		return err
	}
	return c.Renderer.Notice("Ви вийшли з акаунта.")
}

// profileScreen はプロフィール画面を表示する。
func profileScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	if err := requireSession(ctx, c, history); err != nil {
		return err
	}
	return c.Renderer.Profile(model.PlaceholderProfile())
}

// themeScreen は現在のテーマを表示する。引数で切り替え・指定ができる。
// 保存に失敗しても切り替えは反映されるため、警告として表示する。
func themeScreen(ctx context.Context, c *Container, history *nav.History, args []string) error {
	var err error
	switch {
	case len(args) == 0:
	case args[0] == "toggle":
		_, err = c.Themes.Toggle(ctx)
	default:
		t, ok := model.ParseTheme(args[0])
		if !ok {
			return &usageError{msg: fmt.Sprintf("theme: unknown theme %q", args[0])}
		}
		err = c.Themes.Set(ctx, t)
	}

	c.Renderer.SetPalette(c.Themes.Palette())
	if rerr := c.Renderer.Theme(c.Themes.Get()); rerr != nil {
		return rerr
	}
	if err != nil {
		c.Logger.Warn("テーマ設定の保存に失敗しました", slog.String("error", err.Error()))
		return c.Renderer.Alert(model.ToAlert(err))
	}
	return nil
}
