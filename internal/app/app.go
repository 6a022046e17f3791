// Package app はコマンドラインの解析と依存関係の組み立てを行い、各フロントエンドを起動する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/egurtak/internal/config"
	"github.com/hitoshi/egurtak/internal/database"
	"github.com/hitoshi/egurtak/internal/logger"
)

// ErrReported はエラーが通知として画面に表示済みであることを表す。
// 呼び出し元は終了コードのみを設定し、メッセージを重ねて出力しない。
var ErrReported = errors.New("error already reported")

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// ログはwriterに出力する。CLIでは標準出力を画面描画に使うため標準エラー出力を渡す。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	lg := logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, lg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。画面はstdout、ログはstderrに出力する。
func Run(stdout, stderr io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	switch cmd {
	case CommandHelp:
		fmt.Fprint(stdout, usage)
		if len(rest) > 0 {
			return &usageError{msg: fmt.Sprintf("unknown command: %s", rest[0])}
		}
		return nil
	case CommandHealthcheck:
		// 軽量サブコマンドのため、フル初期化をスキップする
		port := os.Getenv("WEB_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, lg, err := Init(stderr)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd == CommandMigrate {
		return runMigrate(ctx, cfg, lg, stdout)
	}

	c, err := NewContainer(ctx, cfg, lg, stdout)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer c.Close()

	lg.Debug("コマンドを実行します",
		slog.String("command", string(cmd)),
		slog.String("store", cfg.StoreDriver),
	)

	if cmd == CommandWeb {
		return runWeb(ctx, c)
	}
	return runScreen(ctx, c, cmd, rest)
}

// runMigrate はストアのマイグレーションを適用する。
// Redisとメモリストアにはスキーマがないため何もしない。
func runMigrate(ctx context.Context, cfg *config.Config, lg *slog.Logger, out io.Writer) error {
	var driver, dsn string
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		driver, dsn = database.DriverSQLite, cfg.StorePath
	case config.StoreDriverPostgres:
		driver, dsn = database.DriverPostgres, cfg.DatabaseURL
	default:
		fmt.Fprintf(out, "Сховище %s не потребує міграцій.\n", cfg.StoreDriver)
		return nil
	}

	target := dsn
	if driver == database.DriverPostgres {
		target = maskDSN(dsn)
	}
	lg.Info("マイグレーションを実行します",
		slog.String("driver", driver),
		slog.String("target", target),
	)

	db, err := database.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(db, driver); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	lg.Info("マイグレーションが完了しました")
	fmt.Fprintln(out, "Міграції застосовано.")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDSN はデータベースURLの認証情報をマスクする。
func maskDSN(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:12] + "***@..."
	}
	return "***"
}
