package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/egurtak/internal/middleware"
	"github.com/hitoshi/egurtak/internal/model"
	"github.com/hitoshi/egurtak/internal/security"
)

// URLResolver は相対的な画像URLをバックエンド基準で解決するインターフェース。
type URLResolver interface {
	ResolveURL(ref string) string
}

// ImageMetrics は画像プロキシのメトリクスを記録するインターフェース。
type ImageMetrics interface {
	RecordImageProxy(status int)
}

// ImageProxyConfig は画像プロキシの設定。
type ImageProxyConfig struct {
	Timeout time.Duration
	MaxSize int64
}

// ImageHandler は投稿画像を取得してブラウザに返す画像プロキシ。
// バックエンドAPIのオリジンは信頼済みクライアントで取得し、
// それ以外はSSRF防止付きクライアントで取得する。
// 本文はMaxSizeまでバッファしてから返すため、上限超過は常に502になる。
type ImageHandler struct {
	resolver URLResolver
	guard    security.SSRFGuardService
	trusted  *http.Client
	safe     *http.Client
	metrics  ImageMetrics
	maxSize  int64
	logger   *slog.Logger
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(resolver URLResolver, guard security.SSRFGuardService, metrics ImageMetrics, cfg ImageProxyConfig, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{
		resolver: resolver,
		guard:    guard,
		trusted:  guard.NewTrustedClient(cfg.Timeout, cfg.MaxSize),
		safe:     guard.NewSafeClient(cfg.Timeout, cfg.MaxSize),
		metrics:  metrics,
		maxSize:  cfg.MaxSize,
		logger:   logger,
	}
}

// ServeHTTP は画像を取得して返す。
// GET /images?src=...
func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.serve(w, r)
	if h.metrics != nil {
		h.metrics.RecordImageProxy(status)
	}
}

func (h *ImageHandler) serve(w http.ResponseWriter, r *http.Request) int {
	src := h.resolver.ResolveURL(strings.TrimSpace(r.URL.Query().Get("src")))
	if src == "" {
		return h.fail(w, http.StatusBadRequest, "Не вказано адресу зображення.")
	}
	if err := h.guard.ValidateURL(src); err != nil {
		h.logger.Warn("画像URLが拒否されました",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		return h.fail(w, http.StatusForbidden, "Адресу зображення заборонено.")
	}

	client := h.safe
	if h.guard.IsTrusted(src) {
		client = h.trusted
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, "Некоректна адреса зображення.")
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, security.ErrResponseTooLarge) {
			return h.tooLarge(w, src)
		}
		h.logger.Warn("画像の取得に失敗しました",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		return h.fail(w, http.StatusBadGateway, model.GenericHTTPMessage)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("画像の取得で予期しないステータスを受信しました",
			slog.String("src", src),
			slog.Int("status", resp.StatusCode),
		)
		return h.fail(w, http.StatusBadGateway, model.GenericHTTPMessage)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		h.logger.Warn("画像以外のコンテンツを受信しました",
			slog.String("src", src),
			slog.String("content_type", contentType),
		)
		return h.fail(w, http.StatusBadGateway, "Сервер повернув не зображення.")
	}
	body := io.Reader(resp.Body)
	if h.maxSize > 0 {
		body = io.LimitReader(resp.Body, h.maxSize+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		if errors.Is(err, security.ErrResponseTooLarge) {
			return h.tooLarge(w, src)
		}
		h.logger.Warn("画像の読み込みが中断されました",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		return h.fail(w, http.StatusBadGateway, model.GenericHTTPMessage)
	}
	if h.maxSize > 0 && int64(buf.Len()) > h.maxSize {
		return h.tooLarge(w, src)
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("画像の転送が中断されました",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
	}
	return http.StatusOK
}

func (h *ImageHandler) tooLarge(w http.ResponseWriter, src string) int {
	h.logger.Warn("画像がサイズ上限を超えました",
		slog.String("src", src),
		slog.Int64("max_size", h.maxSize),
	)
	return h.fail(w, http.StatusBadGateway, "Зображення занадто велике.")
}

// fail はエラーレスポンスを書き込み、そのステータスを返す。
func (h *ImageHandler) fail(w http.ResponseWriter, status int, msg string) int {
	middleware.WriteErrorResponse(w, status, &model.Alert{
		Code:     model.ErrCodeMediaUnavailable,
		Title:    "Помилка",
		Message:  msg,
		Category: "media",
	})
	return status
}
