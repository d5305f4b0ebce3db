package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/actquant/internal/pass"
	"github.com/samcharles93/actquant/pkg/quant"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += fmt.Sprintf("{%s=%s}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestRecordRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)
	c.RecordRun(pass.Report{Precision: quant.U8, Activations: 4, FixedRange: 1, ConstsCloned: 2}, 3*time.Millisecond, nil)
	c.RecordRun(pass.Report{Precision: quant.U8, Activations: 1}, time.Millisecond, fmt.Errorf("wrapped: %w", pass.ErrInvariantViolation))

	got := gather(t, reg)
	want := map[string]float64{
		"actquant_pass_runs_total{result=ok}":                  1,
		"actquant_pass_runs_total{result=invariant_violation}": 1,
		"actquant_nodes_quantized_total{phase=activation}":     5,
		"actquant_nodes_quantized_total{phase=fixed_range}":    1,
		"actquant_nodes_quantized_total{phase=const_input}":    2,
		"actquant_pass_duration_seconds{precision=uint8}":      2,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %v want %v", k, got[k], v)
		}
	}
	if _, ok := got["actquant_nodes_quantized_total{phase=cast}"]; ok {
		t.Errorf("zero counts should not create series")
	}
}

func TestResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{pass.ErrUnsupportedDataType, ResultUnsupportedDataType},
		{&pass.NodeError{Err: pass.ErrUnsupportedOperation}, ResultUnsupportedOperation},
		{errors.New("disk full"), ResultError},
	}
	for _, tc := range tests {
		if got := Result(tc.err); got != tc.want {
			t.Errorf("Result(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
