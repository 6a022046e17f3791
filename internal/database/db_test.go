package database

import (
	"path/filepath"
	"testing"
)

// TestOpen_PostgresReturnsDBForAnyURL はsql.Openが接続を試行しないため、
// 不正なURLでもDBオブジェクトが返ることを検証する。
func TestOpen_PostgresReturnsDBForAnyURL(t *testing.T) {
	db, err := Open(DriverPostgres, "postgres://invalid")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	if db == nil {
		t.Fatal("expected non-nil db")
	}
	defer db.Close()
}

// TestOpen_SQLiteCreatesParentDirectory はSQLiteファイルの親ディレクトリが作成されることを検証する。
func TestOpen_SQLiteCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "egurtak.db")

	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
