package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inventory ledger outcomes.
const (
	ResultOK           = "ok"
	ResultInsufficient = "insufficient"
	ResultNotFound     = "not_found"
	ResultError        = "error"
)

// InventoryMetrics counts ledger mutations by operation and result.
type InventoryMetrics struct {
	ops *prometheus.CounterVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_operations_total",
		Help: "Inventory ledger mutations by operation and result.",
	}, []string{"op", "result"})
	reg.MustRegister(ops)
	return &InventoryMetrics{ops: ops}
}

func (m *InventoryMetrics) Observe(op, result string) {
	if m == nil || m.ops == nil {
		return
	}
	m.ops.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}
