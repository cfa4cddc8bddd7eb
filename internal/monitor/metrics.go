package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 汇总机器人运行期指标，经 /metrics 暴露。
type Metrics struct {
	Cycles    *prometheus.CounterVec
	Signals   *prometheus.CounterVec
	Trades    *prometheus.CounterVec
	LastZ     prometheus.Gauge
	WindowLen prometheus.Gauge
}

// NewMetrics 创建并注册指标。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_cycles_total",
				Help: "Detection cycles by result",
			},
			[]string{"result"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_signals_total",
				Help: "Volume anomaly signals by classification",
			},
			[]string{"type"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_trades_total",
				Help: "Trade lifecycles by side and result",
			},
			[]string{"side", "result"},
		),
		LastZ: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentry_last_volume_zscore",
				Help: "Z-score of the most recent anomalous bar",
			},
		),
		WindowLen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentry_window_bars",
				Help: "Bars in the current market data window",
			},
		),
	}

	reg.MustRegister(m.Cycles, m.Signals, m.Trades, m.LastZ, m.WindowLen)
	return m
}
