// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin()
	RecordLabelInserted()
	RecordLabelUpdated()
	RecordImagesSeeded(count int)
	RecordSeedFailure()
	RecordHTTPRequest(method, path string, status int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins        prometheus.Counter
	labelInserted prometheus.Counter
	labelUpdated  prometheus.Counter
	imagesSeeded  prometheus.Counter
	seedFailures  prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelman_logins_total",
			Help: "ログイン成功の合計数",
		}),
		labelInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelman_labels_inserted_total",
			Help: "新規作成されたラベル送信の合計数",
		}),
		labelUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelman_labels_updated_total",
			Help: "上書き更新されたラベル送信の合計数",
		}),
		imagesSeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelman_images_seeded_total",
			Help: "マニフェストから投入された画像の合計数",
		}),
		seedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelman_seed_failures_total",
			Help: "シード処理失敗の合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelman_http_requests_total",
			Help: "メソッド・パス・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "path", "status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.labelInserted,
		c.labelUpdated,
		c.imagesSeeded,
		c.seedFailures,
		c.httpRequests,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordLabelInserted はラベル送信の新規作成を記録する。
func (c *Collector) RecordLabelInserted() {
	c.labelInserted.Inc()
}

// RecordLabelUpdated はラベル送信の上書き更新を記録する。
func (c *Collector) RecordLabelUpdated() {
	c.labelUpdated.Inc()
}

// RecordImagesSeeded はシード投入された画像数を記録する。
func (c *Collector) RecordImagesSeeded(count int) {
	c.imagesSeeded.Add(float64(count))
}

// RecordSeedFailure はシード処理の失敗を記録する。
func (c *Collector) RecordSeedFailure() {
	c.seedFailures.Inc()
}

// RecordHTTPRequest はHTTPリクエストをメソッド・パス・ステータス別に記録する。
func (c *Collector) RecordHTTPRequest(method, path string, status int) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
