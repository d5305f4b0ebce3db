package optimizer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/internal/metrics"
	"github.com/samcharles93/actquant/internal/pass"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

func tanhGraph(t *testing.T) (*graph.Graph, *graph.Node) {
	t.Helper()
	g := graph.New("tanh")
	x, err := g.Add(graph.OpInput, "x", graph.Float32)
	if err != nil {
		t.Fatalf("add input: %v", err)
	}
	x.QuantParam = &graph.QuantParam{Min: []float32{-2}, Max: []float32{2}}
	th, err := g.Add(graph.OpTanh, "tanh", graph.Float32, x)
	if err != nil {
		t.Fatalf("add tanh: %v", err)
	}
	th.QuantParam = &graph.QuantParam{Min: []float32{-0.9}, Max: []float32{0.9}}
	return g, th
}

func TestOptionsEnableQuery(t *testing.T) {
	t.Parallel()

	var o Options
	if o.Query(QuantizeActivation) {
		t.Fatal("zero Options should have nothing enabled")
	}
	if err := o.Enable(QuantizeActivation); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !o.Query(QuantizeActivation) {
		t.Fatal("QuantizeActivation not enabled")
	}
	if err := o.Enable("FoldBatchNorm"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if got := o.Enabled(); len(got) != 1 || got[0] != QuantizeActivation {
		t.Fatalf("enabled: %v", got)
	}
}

func TestOptionsParams(t *testing.T) {
	t.Parallel()

	var o Options
	if got := o.Value(QuantizeOutputType); got != "uint8" {
		t.Fatalf("default output type: %q", got)
	}
	if err := o.Param(QuantizeOutputType, "s16"); err != nil {
		t.Fatalf("param: %v", err)
	}
	if got := o.Value(QuantizeOutputType); got != "int16" {
		t.Fatalf("normalised output type: %q", got)
	}
	if p, err := o.Precision(); err != nil || p != quant.S16 {
		t.Fatalf("precision: %v %v", p, err)
	}
	if err := o.Param(QuantizeOutputType, "float16"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := o.Param("Quantize_granularity", "channel"); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestQuantizeDisabledIsNoop(t *testing.T) {
	t.Parallel()

	g, th := tanhGraph(t)
	res, err := New(nil, nil).Quantize(context.Background(), g)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	if res.Ran || th.DType != graph.Float32 {
		t.Fatalf("disabled optimizer touched the graph: %+v", res)
	}
}

func TestQuantizeRecordsRun(t *testing.T) {
	t.Parallel()

	var o Options
	if err := o.Enable(QuantizeActivation); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := o.Param(QuantizeOutputType, "int16"); err != nil {
		t.Fatalf("param: %v", err)
	}
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.JSON(&logs, slog.LevelInfo))

	g, th := tanhGraph(t)
	res, err := New(&o, metrics.New(reg)).Quantize(ctx, g)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	if !res.Ran || res.ID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Report.Precision != quant.S16 || res.Report.Activations != 2 || res.Report.FixedRange != 1 {
		t.Fatalf("report: %+v", res.Report)
	}
	if th.DType != graph.Int16 || th.QuantParam.Scale[0] != float32(1.0/32768.0) {
		t.Fatalf("tanh: dtype=%s qp=%+v", th.DType, th.QuantParam)
	}
	if !strings.Contains(logs.String(), `"run":"`+res.ID+`"`) {
		t.Fatalf("run id missing from logs: %s", logs.String())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metrics recorded")
	}
}

func TestQuantizeReturnsPassError(t *testing.T) {
	t.Parallel()

	var o Options
	if err := o.Enable(QuantizeActivation); err != nil {
		t.Fatalf("enable: %v", err)
	}
	g := graph.New("bad")
	c, err := g.AddConst("c", []int{1}, graph.Float32Buffer([]float32{1}))
	if err != nil {
		t.Fatalf("add const: %v", err)
	}
	if _, err := g.Add(graph.OpRelu, "relu", graph.Float32, c); err != nil {
		t.Fatalf("add relu: %v", err)
	}

	var logs bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.JSON(&logs, slog.LevelInfo))
	res, err := New(&o, metrics.New(prometheus.NewRegistry())).Quantize(ctx, g)
	if !errors.Is(err, pass.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if !res.Ran {
		t.Fatal("failed run should still be reported as ran")
	}
	if !strings.Contains(logs.String(), "quantization failed") {
		t.Fatalf("expected failure log, got: %s", logs.String())
	}
}
