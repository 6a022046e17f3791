// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import "context"

// KVRepository は文字列キーと文字列値を永続化するインターフェース。
// セッショントークンやテーマ設定などの端末ローカル設定を保存する。
type KVRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set は指定キーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
