package theme

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/egurtak/internal/database"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/repository"
)

// failingRepo は書き込みが失敗するKVRepository。
type failingRepo struct {
	repository.KVRepository
}

func (failingRepo) Set(ctx context.Context, key, value string) error {
	return errors.New("read-only file system")
}

// openSQLiteRepo は指定パスのSQLiteリポジトリを開く。
func openSQLiteRepo(t *testing.T, path string) (*repository.SQLiteKVRepo, func()) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, path)
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	if err := database.RunMigrations(db, database.DriverSQLite); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	return repository.NewSQLiteKVRepo(db), func() { db.Close() }
}

// TestStore_DarkSurvivesRestart はdarkを設定して再起動した後もdarkが返ることを検証する。
func TestStore_DarkSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "egurtak.db")

	repo, closeDB := openSQLiteRepo(t, path)
	s := NewStore(ctx, repo, Fixed(model.ThemeLight), nil)
	if err := s.Set(ctx, model.ThemeDark); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	closeDB()

	// 再起動をシミュレート
	repo, closeDB = openSQLiteRepo(t, path)
	defer closeDB()
	restarted := NewStore(ctx, repo, Fixed(model.ThemeLight), nil)

	if got := restarted.Get(); got != model.ThemeDark {
		t.Errorf("Get() after restart = %q, want dark", got)
	}
}

func TestStore_InitialValuePrecedence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		stored     string
		appearance Appearance
		want       model.Theme
	}{
		{"保存値を優先", "dark", Fixed(model.ThemeLight), model.ThemeDark},
		{"保存値なしはシステム外観", "", Fixed(model.ThemeDark), model.ThemeDark},
		{"不正な保存値は無視", "sepia", Fixed(model.ThemeDark), model.ThemeDark},
		{"判定不能ならlight", "", Fixed(""), model.ThemeLight},
		{"外観なしならlight", "", nil, model.ThemeLight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryKVRepo()
			if tt.stored != "" {
				_ = repo.Set(ctx, PreferenceKey, tt.stored)
			}
			s := NewStore(ctx, repo, tt.appearance, nil)
			if got := s.Get(); got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestStore_SetPersistsThenBroadcasts は保存後に購読者へ通知されることを検証する。
func TestStore_SetPersistsThenBroadcasts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryKVRepo()
	s := NewStore(ctx, repo, nil, nil)

	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Set(ctx, model.ThemeDark); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	select {
	case got := <-ch:
		if got != model.ThemeDark {
			t.Errorf("broadcast = %q, want dark", got)
		}
		stored, _, _ := repo.Get(ctx, PreferenceKey)
		if stored != "dark" {
			t.Errorf("stored = %q, want dark", stored)
		}
	case <-time.After(time.Second):
		t.Fatal("通知が届かない")
	}
}

// TestStore_SlowSubscriberGetsLatest は受信が遅れた購読者が最新値を受け取ることを検証する。
func TestStore_SlowSubscriberGetsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, repository.NewMemoryKVRepo(), nil, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	_ = s.Set(ctx, model.ThemeDark)
	_ = s.Set(ctx, model.ThemeLight)
	_ = s.Set(ctx, model.ThemeDark)

	if got := <-ch; got != model.ThemeDark {
		t.Errorf("latest = %q, want dark", got)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra value %q", extra)
	default:
	}
}

func TestStore_UnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, repository.NewMemoryKVRepo(), nil, nil)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	// 購読解除後のSetはパニックしない
	_ = s.Set(ctx, model.ThemeDark)
}

// TestStore_PersistFailureStillApplies は保存失敗時もメモリ上は切り替わり、StorageErrorを返すことを検証する。
func TestStore_PersistFailureStillApplies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, failingRepo{repository.NewMemoryKVRepo()}, nil, nil)

	err := s.Set(ctx, model.ThemeDark)
	var storageErr *model.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want *model.StorageError", err)
	}
	if s.Get() != model.ThemeDark {
		t.Errorf("Get() = %q, want dark", s.Get())
	}
}

func TestStore_SetRejectsUnknownTheme(t *testing.T) {
	s := NewStore(context.Background(), repository.NewMemoryKVRepo(), nil, nil)
	var validationErr *model.ValidationError
	if err := s.Set(context.Background(), model.Theme("blue")); !errors.As(err, &validationErr) {
		t.Errorf("err = %v, want *model.ValidationError", err)
	}
}

func TestStore_Toggle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, repository.NewMemoryKVRepo(), nil, nil)

	next, err := s.Toggle(ctx)
	if err != nil || next != model.ThemeDark {
		t.Fatalf("Toggle() = (%q, %v), want (dark, nil)", next, err)
	}
	if s.Palette() != PaletteFor(model.ThemeDark) {
		t.Error("Palette() should follow the current theme")
	}
	next, _ = s.Toggle(ctx)
	if next != model.ThemeLight {
		t.Errorf("second Toggle() = %q, want light", next)
	}
}

func TestPaletteFor(t *testing.T) {
	if PaletteFor(model.ThemeLight).Background != "#FDF5E6" {
		t.Errorf("light background = %q", PaletteFor(model.ThemeLight).Background)
	}
	if PaletteFor(model.ThemeDark).Card != "#A34343" {
		t.Errorf("dark card = %q", PaletteFor(model.ThemeDark).Card)
	}
}

// TestToggleLabel は切り替えボタンが切り替え先のテーマ名を表示することを検証する。
func TestToggleLabel(t *testing.T) {
	if got := ToggleLabel(model.ThemeLight); got != "Темна" {
		t.Errorf("ToggleLabel(light) = %q, want Темна", got)
	}
	if got := ToggleLabel(model.ThemeDark); got != "Світла" {
		t.Errorf("ToggleLabel(dark) = %q, want Світла", got)
	}
	if DisplayName(model.ThemeDark) != "темна" || DisplayName(model.ThemeLight) != "світла" {
		t.Error("unexpected display names")
	}
}

// TestTerminalAppearance_NoColorIsUnknown は色を扱えない出力先では判定不能となることを検証する。
func TestTerminalAppearance_NoColorIsUnknown(t *testing.T) {
	r := lipgloss.NewRenderer(&bytes.Buffer{})
	if _, ok := (TerminalAppearance{Renderer: r}).SystemTheme(); ok {
		t.Error("non-terminal output should not report an appearance")
	}
}
