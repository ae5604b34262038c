package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
)

// Metrics agrupa os contadores do ledger.
type Metrics struct {
	ops         *prometheus.CounterVec
	wagered     prometheus.Counter
	paidOut     prometheus.Counter
	compensated prometheus.Counter
	unsettled   prometheus.Counter
}

// NewMetrics cria e registra os contadores em reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "operações do ledger por resultado",
		}, []string{"op", "result"}),
		wagered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_wagered_units_total",
			Help: "valor total aceito em apostas",
		}),
		paidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_paid_out_units_total",
			Help: "valor total pago a vencedores",
		}),
		compensated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reservations_refunded_total",
			Help: "reservas estornadas após falha da transação",
		}),
		unsettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_claims_credited_unrecorded_total",
			Help: "claims creditados na carteira cuja transação do ledger falhou",
		}),
	}
	reg.MustRegister(m.ops, m.wagered, m.paidOut, m.compensated, m.unsettled)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ledger.Code(err)
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *Metrics) addWagered(amount uint64) {
	if m != nil {
		m.wagered.Add(float64(amount))
	}
}

func (m *Metrics) addPaidOut(amount uint64) {
	if m != nil {
		m.paidOut.Add(float64(amount))
	}
}

func (m *Metrics) incCompensated() {
	if m != nil {
		m.compensated.Inc()
	}
}

func (m *Metrics) incUnsettled() {
	if m != nil {
		m.unsettled.Inc()
	}
}
