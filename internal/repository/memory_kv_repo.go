package repository

import (
	"context"
	"sync"
)

// MemoryKVRepo はプロセス内メモリに保持するキーバリューリポジトリ。
// 永続化が不要な場合やテストで使用する。
type MemoryKVRepo struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryKVRepo は空のMemoryKVRepoを生成する。
func NewMemoryKVRepo() *MemoryKVRepo {
	return &MemoryKVRepo{entries: make(map[string]string)}
}

// Get は指定キーの値を取得する。
func (r *MemoryKVRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.entries[key]
	return value, ok, nil
}

// Set は指定キーに値を保存する。
func (r *MemoryKVRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
	return nil
}

// Delete は指定キーを削除する。
func (r *MemoryKVRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

// compile-time interface check
var _ KVRepository = (*MemoryKVRepo)(nil)
