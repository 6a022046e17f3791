// Package apiclient はeГуртакバックエンドREST APIのクライアントを提供する。
// すべてのリクエストにセッショントークンを付与し、ボディをJSONまたはmultipartで送信する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/egurtak/internal/media"
	"github.com/hitoshi/egurtak/internal/metrics"
	"github.com/hitoshi/egurtak/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 10 << 20
	// defaultUserAgent はリクエストに付与するUser-Agent。
	defaultUserAgent = "egurtak/1.0"
)

// errMalformedBody はレスポンスボディが有効なJSONでないことを表す。
var errMalformedBody = errors.New("malformed response body")

// TokenSource は現在のセッショントークンを返すインターフェース。
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Attachment はmultipartで送信するローカル画像ファイル。
type Attachment struct {
	FieldName string // multipartのフィールド名
	URI       string // ローカルファイルのURI
}

// Options はClientの設定。
type Options struct {
	BaseURL    string // 例: "http://172.23.168.1:8000"
	PathPrefix string // 例: "/api"
	AuthScheme string // "Token" または "Bearer"
	UserAgent  string
	Metrics    metrics.MetricsCollector
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	media      media.Source
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
	prefix     string
	scheme     string
	userAgent  string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, tokens TokenSource, src media.Source, logger *slog.Logger, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		src = media.LocalSource{}
	}
	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		media:      src,
		logger:     logger,
		metrics:    opts.Metrics,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		prefix:     opts.PathPrefix,
		scheme:     opts.AuthScheme,
		userAgent:  opts.UserAgent,
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.scheme == "" {
		c.scheme = "Token"
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c
}

// Do はAPIリクエストを送信し、2xxレスポンスのボディを返す。
// fileがnilの場合はbodyをJSONで送信し、指定された場合はmultipartで送信する。
// 失敗は*model.HTTPErrorとして返す。リトライは行わない。
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, file *Attachment) (json.RawMessage, error) {
	reqBody, contentType, err := c.encodeBody(ctx, body, file)
	if err != nil {
		return nil, err
	}

	fullPath := c.prefix + path
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+fullPath, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", c.scheme+" "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(method, fullPath, 0, time.Since(start))
		c.logger.Error("API呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", fullPath),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, &model.HTTPError{Message: model.GenericHTTPMessage, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordAPIRequest(method, fullPath, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("path", fullPath),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, &model.HTTPError{Status: resp.StatusCode, Message: model.GenericHTTPMessage, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// セッションの破棄や再試行は呼び出し元の判断に任せる
		c.logger.Warn("セッショントークンが拒否されました（401）",
			slog.String("method", method),
			slog.String("path", fullPath),
			slog.String("request_id", requestID),
		)
		return nil, &model.HTTPError{Status: resp.StatusCode, Message: extractMessage(data)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", fullPath),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &model.HTTPError{Status: resp.StatusCode, Message: extractMessage(data)}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		c.logger.Error("APIのレスポンスがJSONとして不正です",
			slog.String("path", fullPath),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &model.HTTPError{Status: resp.StatusCode, Message: model.GenericHTTPMessage, Err: errMalformedBody}
	}

	c.logger.Debug("API呼び出しが完了しました",
		slog.String("method", method),
		slog.String("path", fullPath),
		slog.String("request_id", requestID),
		slog.Int("http_status", resp.StatusCode),
	)
	return json.RawMessage(data), nil
}

// encodeBody はリクエストボディとContent-Typeを組み立てる。
func (c *Client) encodeBody(ctx context.Context, body map[string]any, file *Attachment) (io.Reader, string, error) {
	if file == nil {
		if body == nil {
			return nil, "", nil
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, ok, err := scalarString(body[k])
		if err != nil {
			return nil, "", fmt.Errorf("field %q: %w", k, err)
		}
		if !ok {
			continue
		}
		if err := w.WriteField(k, value); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart field: %w", err)
		}
	}

	src, err := c.media.Open(ctx, file.URI)
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	name := media.FileName(file.URI)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.FieldName), escapeQuotes(name)))
	h.Set("Content-Type", media.MIMEType(name))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("failed to copy attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// scalarString はスカラー値をmultipartのテキスト値に変換する。
// nilはスキップし、スカラー以外はエラーとする。
func scalarString(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	case json.Number:
		return val.String(), true, nil
	case fmt.Stringer:
		return val.String(), true, nil
	default:
		return "", false, fmt.Errorf("unsupported multipart value of type %T", v)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// extractMessage はエラーレスポンスからユーザー向けメッセージを抽出する。
// detail、message、DRFのフィールドエラーの順に探し、見つからなければ空文字列を返す。
func extractMessage(data []byte) string {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}

	switch v := decoded.(type) {
	case string:
		return v
	case []any:
		return firstString(v)
	case map[string]any:
		for _, key := range []string{"detail", "message", "error"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		if list, ok := v["non_field_errors"].([]any); ok {
			if s := firstString(list); s != "" {
				return s
			}
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			var msg string
			switch fv := v[k].(type) {
			case string:
				msg = fv
			case []any:
				msg = firstString(fv)
			}
			if msg != "" {
				parts = append(parts, k+": "+msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func firstString(list []any) string {
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
