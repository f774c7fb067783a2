package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry アプリケーションのPrometheusメトリクス一式
type Registry struct {
	reg *prometheus.Registry

	// 集計時に黙って除外された明細の観測用カウンタ。
	// 「売上なし」と「全明細が不正」を運用側で区別できるようにする。
	LinesSkippedMissingOrder prometheus.Counter
	LinesSkippedInvalidDate  prometheus.Counter

	ForecastsComputed  prometheus.Counter
	OptimizationRuns   prometheus.Counter
	ForecastLatencySec prometheus.Histogram
}

// NewRegistry メトリクスを登録済みのRegistryを生成する
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	skippedMissingOrder := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecast_lines_skipped_missing_order_total",
		Help: "対応する受注が見つからず集計から除外された明細数",
	})
	skippedInvalidDate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecast_lines_skipped_invalid_date_total",
		Help: "受注日が解析できず集計から除外された明細数",
	})
	forecastsComputed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecast_products_computed_total",
		Help: "需要予測を算出した製品の累計数",
	})
	optimizationRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_optimization_runs_total",
		Help: "AI在庫最適化の実行回数",
	})
	forecastLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_generation_latency_seconds",
		Help:    "需要予測パイプラインの処理時間",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(skippedMissingOrder, skippedInvalidDate, forecastsComputed, optimizationRuns, forecastLatency)
	return &Registry{
		reg:                      r,
		LinesSkippedMissingOrder: skippedMissingOrder,
		LinesSkippedInvalidDate:  skippedInvalidDate,
		ForecastsComputed:        forecastsComputed,
		OptimizationRuns:         optimizationRuns,
		ForecastLatencySec:       forecastLatency,
	}
}

// Handler /metricsエンドポイント用のHTTPハンドラを返す
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
