package infra

import (
	"context"
	"strconv"

	"fare-monitor/queue/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromStatsStore exporta os desfechos da fila como métricas Prometheus.
type PromStatsStore struct {
	results  *prometheus.CounterVec
	retries  prometheus.Counter
	attempts *prometheus.CounterVec
}

// NewPromStatsStore registra as métricas em reg (nil = registry padrão).
func NewPromStatsStore(reg prometheus.Registerer) *PromStatsStore {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PromStatsStore{
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farequeue_results_total",
			Help: "Requests finished by the upstream queue, by result kind",
		}, []string{"kind"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "farequeue_retries_total",
			Help: "Attempts re-queued after a 429 or a network error",
		}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farequeue_attempts_total",
			Help: "Finished requests by number of attempts used",
		}, []string{"attempts"}),
	}
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Retry {
		s.retries.Inc()
		return nil
	}
	s.results.WithLabelValues(ev.Kind.String()).Inc()
	if ev.Attempts > 0 {
		s.attempts.WithLabelValues(strconv.Itoa(ev.Attempts)).Inc()
	}
	return nil
}

// FanOut replica cada evento para várias stores; o primeiro erro é devolvido
// depois que todas foram chamadas.
type FanOut []domain.StatsStore

func (f FanOut) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
