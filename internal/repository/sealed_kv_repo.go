package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrUnsealFailed は保存値の復号に失敗したことを表す。
// キーの変更や値の改ざんで発生する。
var ErrUnsealFailed = errors.New("failed to unseal stored value")

// SealedKVRepo は値をsecretboxで暗号化してから下位リポジトリに保存するデコレータ。
// キー名は平文のまま保存する。
type SealedKVRepo struct {
	inner KVRepository
	key   *[32]byte
}

// NewSealedKVRepo はSealedKVRepoを生成する。
func NewSealedKVRepo(inner KVRepository, key *[32]byte) *SealedKVRepo {
	return &SealedKVRepo{inner: inner, key: key}
}

// Get は値を取得して復号する。
func (r *SealedKVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, found, err := r.inner.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", false, ErrUnsealFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, r.key)
	if !ok {
		return "", false, ErrUnsealFailed
	}
	return string(plain), true, nil
}

// Set は値を暗号化して保存する。nonceは毎回ランダムに生成する。
func (r *SealedKVRepo) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, r.key)
	return r.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

// Delete は指定キーを削除する。
func (r *SealedKVRepo) Delete(ctx context.Context, key string) error {
	return r.inner.Delete(ctx, key)
}

// compile-time interface check
var _ KVRepository = (*SealedKVRepo)(nil)
