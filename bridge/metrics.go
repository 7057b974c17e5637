package bridge

import (
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type metrics struct {
	batches     prometheus.Counter
	deposits    prometheus.Counter
	withdrawals prometheus.Counter
	rejections  *prometheus.CounterVec
	escrow      prometheus.Gauge
	sequence    prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_batches_total",
			Help: "Number of accepted batches.",
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_deposits_total",
			Help: "Number of committed deposits.",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_withdrawals_total",
			Help: "Number of committed withdrawals.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_rejections_total",
			Help: "Number of failed bridge operations by operation and error kind.",
		}, []string{"op", "kind"}),
		escrow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_escrow_balance",
			Help: "Escrow balance after the last commit (float approximation).",
		}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_batch_sequence",
			Help: "Batch sequence after the last commit.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.batches, m.deposits, m.withdrawals, m.rejections, m.escrow, m.sequence}
}

// register adds the collectors to reg. Names that are already registered
// keep their existing collector.
func (m *metrics) register(reg prometheus.Registerer, log *logrus.Logger) {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			log.Warnf("Failed to register bridge metric: %v", err)
		}
	}
}

func (m *metrics) observe(snap *state.Snapshot) {
	m.escrow.Set(snap.Escrow.Balance().Float64())
	m.sequence.Set(float64(snap.Roots.Sequence()))
}
