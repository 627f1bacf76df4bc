package obs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onboarding"

// Metrics はサービスが公開する Prometheus メトリクスです。
// ledger.TransitionObserver と sweep.RunObserver を満たします。
type Metrics struct {
	transitions   *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	buildInfo     *prometheus.GaugeVec
}

// NewMetrics はメトリクスを生成し reg へ登録します。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_transitions_total",
			Help:      "Status entries appended to the ledger.",
		}, []string{"kind", "status"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiration sweep runs by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Expiration sweep latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC requests.",
		}, []string{"method", "code"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information.",
		}, []string{"version"}),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.sweepRuns, m.sweepDuration, m.requests, m.requestTime, m.buildInfo} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("obs: register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveTransition は台帳への追記を記録します。
func (m *Metrics) ObserveTransition(kind ledger.Kind, status ledger.IntegrationStatus) {
	m.transitions.WithLabelValues(string(kind), string(status)).Inc()
}

// ObserveSweep はスイープの実行結果と所要時間を記録します。
func (m *Metrics) ObserveSweep(result string, d time.Duration) {
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepDuration.Observe(d.Seconds())
}

// ObserveRequest は gRPC リクエストの結果コードと所要時間を記録します。
func (m *Metrics) ObserveRequest(method, code string, d time.Duration) {
	m.requests.WithLabelValues(method, code).Inc()
	m.requestTime.WithLabelValues(method).Observe(d.Seconds())
}

// SetBuildInfo は build_info{version} を 1 に設定します。
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Handler は g の内容を公開する HTTP ハンドラーを返します。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
