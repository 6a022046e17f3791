package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range securityHeaders {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

// TestSecurityHeadersMiddleware_HandlerOverridesCache は画像プロキシなどがキャッシュ指定を上書きできることを検証する。
func TestSecurityHeadersMiddleware_HandlerOverridesCache(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, max-age=300")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/images", nil))

	if got := w.Header().Get("Cache-Control"); got != "private, max-age=300" {
		t.Errorf("Cache-Control = %q, want handler value", got)
	}
}

func TestBodyLimitMiddleware_RejectsOversizedBody(t *testing.T) {
	var readErr error
	handler := NewBodyLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("0123456789")))

	if readErr == nil {
		t.Error("expected error reading body over the limit")
	}
}

// TestMiddlewareChain_WithChiRouter はchiルーター上でミドルウェアチェーンが順に適用されることを検証する。
func TestMiddlewareChain_WithChiRouter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(NewRequestIDMiddleware())
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCSRFMiddleware(CSRFConfig{}))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(CSRFToken(r.Context())))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.Len() != 64 {
		t.Errorf("body should carry the CSRF token, got %q", w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("request id header should be set")
	}
	if !strings.Contains(buf.String(), w.Header().Get(requestIDHeader)) {
		t.Errorf("log should include request id: %s", buf.String())
	}
}
