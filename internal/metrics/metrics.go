// Package metrics exposes prometheus collectors for quantization runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/samcharles93/actquant/internal/pass"
)

const namespace = "actquant"

// Result label values of PassRuns.
const (
	ResultOK                   = "ok"
	ResultUnsupportedDataType  = "unsupported_data_type"
	ResultUnsupportedOperation = "unsupported_operation"
	ResultInvariantViolation   = "invariant_violation"
	ResultError                = "error"
)

// Collectors groups the pass metrics registered on one registry.
type Collectors struct {
	PassRuns       *prometheus.CounterVec
	NodesQuantized *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		PassRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_runs_total",
			Help:      "Activation quantization runs by result",
		}, []string{"result"}),
		NodesQuantized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_quantized_total",
			Help:      "Nodes rewritten by the quantization phases",
		}, []string{"phase"}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a full quantization run",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"precision"}),
	}
}

// Default is registered on the process-wide prometheus registry.
var Default = New(prometheus.DefaultRegisterer)

// RecordRun records one finished run. r may be partial when err is non-nil.
func (c *Collectors) RecordRun(r pass.Report, took time.Duration, err error) {
	c.PassRuns.WithLabelValues(Result(err)).Inc()
	c.PassDuration.WithLabelValues(r.Precision.String()).Observe(took.Seconds())

	for phase, n := range map[string]int{
		"activation":    r.Activations,
		"cast":          r.CastsFixed,
		"fixed_range":   r.FixedRange,
		"integer_scale": r.IntegerScale,
		"const_input":   r.ConstsCloned,
	} {
		if n > 0 {
			c.NodesQuantized.WithLabelValues(phase).Add(float64(n))
		}
	}
}

// Result maps a run error to its PassRuns label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, pass.ErrUnsupportedDataType):
		return ResultUnsupportedDataType
	case errors.Is(err, pass.ErrUnsupportedOperation):
		return ResultUnsupportedOperation
	case errors.Is(err, pass.ErrInvariantViolation):
		return ResultInvariantViolation
	default:
		return ResultError
	}
}
