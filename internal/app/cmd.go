package app

// Command はアプリケーションのサブコマンドを表す。
type Command string

const (
	// CommandFeed はフィード画面を表示する。
	CommandFeed Command = "feed"
	// CommandPost は投稿詳細画面を表示する。
	CommandPost Command = "post"
	// CommandAddPost は投稿を作成する。
	CommandAddPost Command = "add-post"
	// CommandLogin はログインする。
	CommandLogin Command = "login"
	// CommandRegister はアカウントを登録する。
	CommandRegister Command = "register"
	// CommandLogout はログアウトする。
	CommandLogout Command = "logout"
	// CommandProfile はプロフィール画面を表示する。
	CommandProfile Command = "profile"
	// CommandTheme はテーマを表示・変更する。
	CommandTheme Command = "theme"
	// CommandWeb はローカルWebフロントエンドを起動する。
	CommandWeb Command = "web"
	// CommandMigrate はストアのマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

var commands = []Command{
	CommandFeed, CommandPost, CommandAddPost, CommandLogin, CommandRegister, CommandLogout,
	CommandProfile, CommandTheme, CommandWeb, CommandMigrate, CommandHealthcheck, CommandHelp,
}

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空の場合はCommandFeed、サポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandFeed, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, args[1:]
		}
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp, nil
	}
	return CommandHelp, args
}

// usage はCLIの使い方。
const usage = `Використання: egurtak <команда> [параметри]

Команди:
  feed                               стрічка оголошень (за замовчуванням)
  post <id>                          оголошення
  add-post -title T -content C [-image FILE]
  login -username U -password P
  register -username U -password P [-dorm N] [-photo FILE]
  logout
  profile
  theme [toggle|light|dark]
  web                                локальний веб-інтерфейс
  migrate                            застосувати міграції сховища
  healthcheck
`
