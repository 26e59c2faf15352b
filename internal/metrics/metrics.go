package metrics

import (
	"errors"

	"github.com/localnerve/portsmith/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results
const (
	ResultOK              = "ok"
	ResultNotReserved     = "not_reserved"
	ResultAlreadyReserved = "already_reserved"
	ResultRangeExhausted  = "range_exhausted"
	ResultMalformedInput  = "malformed_input"
	ResultStorageError    = "storage_error"
	ResultError           = "error"
)

// Metrics counts reservation operations by outcome
type Metrics struct {
	operations *prometheus.CounterVec
}

// New registers the reservation counters with reg
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "portsmith",
			Name:      "reservation_operations_total",
			Help:      "Reservation operations by operation and result.",
		}, []string{"op", "result"}),
	}
}

// Observe counts one run of op that ended with err
func (m *Metrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Result(err)).Inc()
}

// Operations exposes the counter vector, mainly for tests
func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}

// Result names the outcome of err
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, types.ErrNotReserved):
		return ResultNotReserved
	case errors.Is(err, types.ErrAlreadyReserved):
		return ResultAlreadyReserved
	case errors.Is(err, types.ErrRangeExhausted):
		return ResultRangeExhausted
	case errors.Is(err, types.ErrMalformedInput):
		return ResultMalformedInput
	case errors.Is(err, types.ErrStorage):
		return ResultStorageError
	default:
		return ResultError
	}
}
