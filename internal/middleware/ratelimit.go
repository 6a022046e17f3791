package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/egurtak/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 全リクエストのレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 全リクエストのバーストサイズ
	PostingRate     rate.Limit    // 投稿作成のレート（req/sec）。10/60
	PostingBurst    int           // 投稿作成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 全リクエスト 120 req/min/IP、投稿作成 10 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
// 0以下の値は1として扱う。
func NewRateLimiterConfig(generalPerMinute, postingPerMinute int) RateLimiterConfig {
	generalPerMinute = max(generalPerMinute, 1)
	postingPerMinute = max(postingPerMinute, 1)
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		PostingRate:     rate.Limit(float64(postingPerMinute) / 60.0),
		PostingBurst:    postingPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterSet はクライアントIPごとのトークンバケットを保持する。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLimiterSet(name string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{name: name, limit: limit, burst: burst, entries: make(map[string]*limiterEntry)}
}

// allow はクライアントのバケットからトークンを1つ消費できるかを返す。
func (s *limiterSet) allow(clientIP string, now time.Time) bool {
	s.mu.Lock()
	e, ok := s.entries[clientIP]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[clientIP] = e
	}
	e.lastAccess = now
	s.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// prune は最終アクセスがcutoffより前のエントリを削除し、削除数を返す。
func (s *limiterSet) prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ip, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			delete(s.entries, ip)
			removed++
		}
	}
	return removed
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// middleware は上限超過時に429を返すミドルウェアを生成する。
func (s *limiterSet) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)
			if !s.allow(clientIP, time.Now()) {
				slog.Warn("レート制限を超過しました",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", s.name),
					slog.String("path", r.URL.Path),
				)
				writeRateLimitResponse(w, s.limit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// 全リクエスト用と、投稿・登録フォーム用の2種類のバケットを独立に持つ。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	posting *limiterSet
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成し、期限切れエントリの定期削除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		posting: newLimiterSet("posting", config.PostingRate, config.PostingBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop は定期削除のゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware は全リクエストに対するレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// PostingMiddleware は投稿作成と登録のレート制限ミドルウェアを返す。
func (rl *RateLimiter) PostingMiddleware() func(next http.Handler) http.Handler {
	return rl.posting.middleware()
}

// GeneralLimiterCount は全リクエスト用に管理しているクライアント数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// PostingLimiterCount は投稿用に管理しているクライアント数を返す。
func (rl *RateLimiter) PostingLimiterCount() int {
	return rl.posting.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * rl.config.CleanupInterval)
	removed := rl.general.prune(cutoff) + rl.posting.prune(cutoff)
	if removed > 0 {
		slog.Debug("レート制限のエントリを削除しました", slog.Int("removed", removed))
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.Alert{
		Code:     ErrCodeRateLimited,
		Title:    "Увага",
		Message:  "Забагато запитів.",
		Category: "system",
		Action:   "Зачекайте та спробуйте ще раз.",
	})
}

// ErrCodeRateLimited はレート制限超過のエラーコード。
const ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"

// ClientIP はリクエスト元のIPアドレスを返す。
// RemoteAddrがhost:port形式でない場合はそのまま返す。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
