// Package metrics собирает метрики Prometheus для распознавания врат.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics метрики сопоставления, индекса и загрузки каталога
type GateMetrics struct {
	Matches      *prometheus.CounterVec   // Исходы сопоставления
	MatchLatency prometheus.Histogram     // Длительность одного Match
	IndexCells   *prometheus.GaugeVec     // Размер индекса по ролям
	Gates        prometheus.Gauge         // Зарегистрированные врата
	Transitions  *prometheus.CounterVec   // Открытия/закрытия/разрушения
	FormatLoads  *prometheus.CounterVec   // Загрузка форматов: ok/failed
	Formats      prometheus.Gauge         // Форматы в каталоге
	registered   []prometheus.Collector
}

// New создаёт метрики и регистрирует их в reg (nil: без регистрации)
func New(namespace string, reg prometheus.Registerer) *GateMetrics {
	if namespace == "" {
		namespace = "gates"
	}
	m := &GateMetrics{
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Попытки распознавания врат по исходу.",
		}, []string{"outcome"}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Длительность сопоставления постройки с форматами.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		IndexCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_cells",
			Help:      "Количество позиций в пространственном индексе по ролям.",
		}, []string{"role"}),
		Gates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered",
			Help:      "Количество зарегистрированных врат.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Изменения состояния врат по типу.",
		}, []string{"event"}),
		FormatLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_loads_total",
			Help:      "Загрузка файлов форматов по результату.",
		}, []string{"result"}),
		Formats: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "formats",
			Help:      "Количество форматов в каталоге.",
		}),
	}
	m.registered = []prometheus.Collector{
		m.Matches, m.MatchLatency, m.IndexCells, m.Gates, m.Transitions, m.FormatLoads, m.Formats,
	}
	if reg != nil {
		reg.MustRegister(m.registered...)
	}
	return m
}

// ObserveMatch учитывает исход и длительность сопоставления
func (m *GateMetrics) ObserveMatch(outcome string, seconds float64) {
	m.Matches.WithLabelValues(outcome).Inc()
	m.MatchLatency.Observe(seconds)
}

// SetIndexSize обновляет размер индекса для роли
func (m *GateMetrics) SetIndexSize(role string, cells int) {
	m.IndexCells.WithLabelValues(role).Set(float64(cells))
}

// RecordCatalogLoad учитывает итог пакетной загрузки каталога
func (m *GateMetrics) RecordCatalogLoad(loaded, failed, total int) {
	m.FormatLoads.WithLabelValues("ok").Add(float64(loaded))
	m.FormatLoads.WithLabelValues("failed").Add(float64(failed))
	m.Formats.Set(float64(total))
}
