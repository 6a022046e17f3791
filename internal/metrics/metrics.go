// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントやフィード読み込み、Webハンドラーから利用する。
type MetricsCollector interface {
	RecordAPIRequest(method, path string, status int, duration time.Duration)
	RecordFeedLoad(result string, posts int)
	RecordPostCreated(withImage bool)
	RecordImageProxy(status int)
}

// numericSegment はパス中の数値IDセグメントに一致する。
var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	feedLoads    *prometheus.CounterVec
	feedPosts    prometheus.Gauge
	postsCreated *prometheus.CounterVec
	imageProxy   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "egurtak_api_requests_total",
			Help: "バックエンドAPI呼び出しの合計数",
		}, []string{"method", "endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "egurtak_api_request_duration_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		feedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "egurtak_feed_loads_total",
			Help: "フィード読み込みの結果別合計数",
		}, []string{"result"}),
		feedPosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "egurtak_feed_posts",
			Help: "直近のフィード読み込みで表示中の投稿数",
		}),
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "egurtak_posts_created_total",
			Help: "作成された投稿の合計数",
		}, []string{"with_image"}),
		imageProxy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "egurtak_image_proxy_total",
			Help: "画像プロキシのステータスコード別レスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.feedLoads,
		c.feedPosts,
		c.postsCreated,
		c.imageProxy,
	)

	return c
}

// EndpointLabel はパス中の数値IDを{id}に置き換え、ラベルのカーディナリティを抑える。
func EndpointLabel(path string) string {
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/{id}$1")
	}
	return path
}

// RecordAPIRequest はAPI呼び出しを記録する。ネットワーク障害時のstatusは0。
func (c *Collector) RecordAPIRequest(method, path string, status int, duration time.Duration) {
	endpoint := EndpointLabel(path)
	c.apiRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFeedLoad はフィード読み込み結果を記録する。
func (c *Collector) RecordFeedLoad(result string, posts int) {
	c.feedLoads.WithLabelValues(result).Inc()
	c.feedPosts.Set(float64(posts))
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated(withImage bool) {
	c.postsCreated.WithLabelValues(strconv.FormatBool(withImage)).Inc()
}

// RecordImageProxy は画像プロキシのレスポンスを記録する。
func (c *Collector) RecordImageProxy(status int) {
	c.imageProxy.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordAPIRequest(string, string, int, time.Duration) {}
func (Nop) RecordFeedLoad(string, int)                         {}
func (Nop) RecordPostCreated(bool)                             {}
func (Nop) RecordImageProxy(int)                               {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
