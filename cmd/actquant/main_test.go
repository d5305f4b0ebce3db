package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/actquant/internal/graphio"
	"github.com/samcharles93/actquant/internal/optimizer"
	"github.com/samcharles93/actquant/internal/pass"
	"github.com/samcharles93/actquant/pkg/graph"
)

const sigmoidGraph = `{
  "name": "sigmoid",
  "nodes": [
    {"name": "x", "op": "input", "dtype": "float32", "quantparam": {"min": [-4], "max": [4]}},
    {"name": "y", "op": "logistic", "dtype": "float32", "inputs": ["x"], "quantparam": {"min": [0.01], "max": [0.98]}}
  ],
  "outputs": ["y"]
}`

const badGraph = `{
  "name": "bad",
  "nodes": [
    {"name": "c", "op": "const", "dtype": "float32", "shape": [1], "data": [1]},
    {"name": "r", "op": "relu", "dtype": "float32", "inputs": ["c"]}
  ]
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newOptimizer(t *testing.T, precision string) *optimizer.Optimizer {
	t.Helper()
	var opts optimizer.Options
	if err := opts.Enable(optimizer.QuantizeActivation); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := opts.Param(optimizer.QuantizeOutputType, precision); err != nil {
		t.Fatalf("param: %v", err)
	}
	return optimizer.New(&opts, nil)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil || cfg.Precision != "" {
		t.Fatalf("missing config: %+v %v", cfg, err)
	}

	path := writeFile(t, dir, "config.yaml", "precision: int16\njobs: 2\nout_dir: /tmp/q\nlog_format: json\n")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Precision != "int16" || cfg.Jobs == nil || *cfg.Jobs != 2 || cfg.OutDir != "/tmp/q" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	bad := writeFile(t, dir, "bad.yaml", "jobs: [\n")
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestQuantizeFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", sigmoidGraph)
	b := writeFile(t, dir, "b.json", strings.Replace(sigmoidGraph, `"sigmoid"`, `"other"`, 1))
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	results, err := quantizeFiles(context.Background(), newOptimizer(t, "int16"), []string{b, a}, out, graphio.FormatYAML, 2)
	if err != nil {
		t.Fatalf("quantize files: %v", err)
	}
	if len(results) != 2 || results[0].In != b || results[1].In != a {
		t.Fatalf("results not in argument order: %+v", results)
	}
	wantOut := filepath.Join(out, "a.quant.yaml")
	if results[1].Out != wantOut {
		t.Fatalf("output path: got %s want %s", results[1].Out, wantOut)
	}

	g, err := graphio.Load(wantOut)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	y := g.Node("y")
	if y.DType != graph.Int16 || y.QuantParam.Scale[0] != float32(1.0/32768.0) {
		t.Fatalf("y: dtype=%s qp=%+v", y.DType, y.QuantParam)
	}

	var buf bytes.Buffer
	renderSummary(&buf, results)
	if !strings.Contains(buf.String(), "a.quant.yaml") || !strings.Contains(buf.String(), "ACTIVATIONS") {
		t.Fatalf("summary output:\n%s", buf.String())
	}
}

func TestQuantizeFilesStopsOnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", badGraph)

	_, err := quantizeFiles(context.Background(), newOptimizer(t, "uint8"), []string{bad}, "", "", 1)
	if !errors.Is(err, pass.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("error should name the file: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "bad.quant.json")); !os.IsNotExist(statErr) {
		t.Fatalf("failed run must not write output, stat: %v", statErr)
	}
}

func TestQuantizeFilesRejectsClashingOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, sub := range []string{"one", "two", "out"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	a := writeFile(t, dir, filepath.Join("one", "model.json"), sigmoidGraph)
	b := writeFile(t, dir, filepath.Join("two", "model.json"), sigmoidGraph)
	out := filepath.Join(dir, "out")

	results, err := quantizeFiles(context.Background(), newOptimizer(t, "uint8"), []string{a, b}, out, "", 2)
	if err == nil || !strings.Contains(err.Error(), "model.quant.json") {
		t.Fatalf("expected clash error naming the output, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("nothing should run on a clash, got %+v", results)
	}
	if _, statErr := os.Stat(filepath.Join(out, "model.quant.json")); !os.IsNotExist(statErr) {
		t.Fatalf("clash must not write output, stat: %v", statErr)
	}

	// next to each input the names do not clash
	if _, err := quantizeFiles(context.Background(), newOptimizer(t, "uint8"), []string{a, b}, "", "", 2); err != nil {
		t.Fatalf("quantize without out dir: %v", err)
	}
}

func TestRenderGraph(t *testing.T) {
	t.Parallel()

	g, err := graphio.Read(strings.NewReader(sigmoidGraph), graphio.FormatJSON)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := newOptimizer(t, "uint8").Quantize(context.Background(), g); err != nil {
		t.Fatalf("quantize: %v", err)
	}

	var buf bytes.Buffer
	renderGraph(&buf, g, true)
	out := buf.String()
	for _, want := range []string{"logistic", "uint8", "0.00390625", "2 nodes, 2 listed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestShapeString(t *testing.T) {
	t.Parallel()

	if got := shapeString(nil); got != "-" {
		t.Fatalf("nil shape: %q", got)
	}
	if got := shapeString([]int{1, 28, 28, 3}); got != "[1 28 28 3]" {
		t.Fatalf("shape: %q", got)
	}
}
