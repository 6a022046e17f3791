package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hitoshi/egurtak/internal/media"
)

// saveUpload はフォームの添付ファイルを一時ファイルに保存し、そのfile:// URIを返す。
// ファイルが選択されていない場合は空文字列を返す。
// 返されたcleanupは送信後に必ず呼び出す。
func saveUpload(r *http.Request, field string) (uri string, cleanup func(), err error) {
	cleanup = func() {}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", cleanup, nil
	}
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to read upload %s: %w", field, err)
	}
	defer file.Close()

	if header.Size == 0 && header.Filename == "" {
		return "", cleanup, nil
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "egurtak-upload-*"+ext)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup = func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to save upload: %w", err)
	}

	return media.FileURI(tmp.Name()), cleanup, nil
}
