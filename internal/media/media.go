// Package media はローカル画像ファイルの選択と読み出しを提供する。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hitoshi/egurtak/internal/model"
)

// DefaultMIMEType は拡張子が不明な場合に使用するMIMEタイプ。
const DefaultMIMEType = "image/jpeg"

// defaultFileName はURIからファイル名を取り出せない場合に使用する。
const defaultFileName = "image.jpg"

// mimeTypes は拡張子とMIMEタイプの固定対応表。
var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"heif": "image/heif",
	"bmp":  "image/bmp",
}

// Source はローカル画像URIの内容を読み出すインターフェース。
type Source interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Picker は画像を選択してローカルURIを返すインターフェース。
// 選択がキャンセルされた場合はmodel.ErrPickCanceledを返す。
type Picker interface {
	Pick(ctx context.Context) (string, error)
}

// FileName はURIの最後のパスセグメントをファイル名として返す。
func FileName(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		p = u.Path
	}
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return defaultFileName
	}
	return name
}

// MIMEType はファイル名の拡張子からMIMEタイプを決定する。
// 対応表にない拡張子、または拡張子なしの場合はimage/jpegを返す。
func MIMEType(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if mt, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return DefaultMIMEType
}

// LocalPath はfile://形式のURIまたは通常のパスをファイルシステムのパスに変換する。
func LocalPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("invalid file uri: %w", err)
		}
		return filepath.FromSlash(u.Path), nil
	}
	if strings.Contains(uri, "://") {
		return "", fmt.Errorf("unsupported uri scheme: %s", uri)
	}
	return uri, nil
}

// FileURI はローカルパスをfile://形式のURIに変換する。
func FileURI(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

// LocalSource はローカルファイルシステムから画像を読み出すSource。
type LocalSource struct{}

// Open はURIが指すファイルを開く。
// 権限エラーはmodel.ErrMediaPermissionとして返す。
func (LocalSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := LocalPath(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w", p, model.ErrMediaPermission)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return f, nil
}

// StaticPicker は事前に指定されたパスを選択結果として返すPicker。
// CLIの--imageフラグやWebのアップロード一時ファイルに使用する。
type StaticPicker struct {
	Path string
}

// Pick はパスの存在と読み取り権限を確認し、file://形式のURIを返す。
func (p StaticPicker) Pick(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Path == "" {
		return "", model.ErrPickCanceled
	}
	f, err := os.Open(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("pick %s: %w", p.Path, model.ErrMediaPermission)
		}
		return "", fmt.Errorf("failed to pick image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("pick %s: is a directory", p.Path)
	}
	return FileURI(p.Path), nil
}
