package graphio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/actquant/pkg/graph"
)

const addGraphJSON = `{
  "name": "add",
  "nodes": [
    {"name": "add", "op": "add", "dtype": "float32", "inputs": ["x", "c"],
     "fused_activation": "relu", "quantparam": {"min": [-2], "max": [3]}},
    {"name": "x", "op": "input", "dtype": "float32", "shape": [3],
     "quantparam": {"min": [-1], "max": [1]}},
    {"name": "c", "op": "const", "dtype": "float32", "shape": [3], "data": [-1, 0, 2]},
    {"name": "to_int", "op": "cast", "dtype": "int32", "inputs": ["add"],
     "in_data_type": "float32", "out_data_type": "int32"}
  ],
  "outputs": ["to_int"]
}`

const addGraphYAML = `
name: add
nodes:
  - name: x
    op: input
    dtype: float32
    shape: [3]
    quantparam: {min: [-1], max: [1]}
  - name: c
    op: const
    dtype: float32
    shape: [3]
    data: [-1, 0, 2]
  - name: add
    op: add
    dtype: float32
    inputs: [x, c]
    fused_activation: relu
    quantparam: {min: [-2], max: [3]}
  - name: to_int
    op: cast
    dtype: int32
    inputs: [add]
    in_data_type: f32
    out_data_type: s32
outputs: [to_int]
`

func checkAddGraph(t *testing.T, g *graph.Graph) {
	t.Helper()
	if g.Name != "add" || g.Len() != 4 {
		t.Fatalf("graph %q with %d nodes", g.Name, g.Len())
	}
	add := g.Node("add")
	if add.Input("x") != g.Node("x") || add.Input("y") != g.Node("c") {
		t.Fatalf("add inputs not wired by name")
	}
	if add.Fused != graph.FusedRelu || add.QuantParam.Max[0] != 3 {
		t.Fatalf("add attrs: fused=%s qp=%+v", add.Fused, add.QuantParam)
	}
	values, err := g.Node("c").Buffer.Float32s()
	if err != nil || len(values) != 3 || values[2] != 2 {
		t.Fatalf("const data: %v %v", values, err)
	}
	cast := g.Node("to_int")
	if cast.Cast != (graph.CastAttrs{InDataType: graph.Float32, OutDataType: graph.Int32}) {
		t.Fatalf("cast attrs: %+v", cast.Cast)
	}
	if outs := g.Outputs(); len(outs) != 1 || outs[0] != cast {
		t.Fatalf("outputs: %v", outs)
	}
}

func TestReadJSONOutOfOrder(t *testing.T) {
	t.Parallel()

	g, err := Read(strings.NewReader(addGraphJSON), FormatJSON)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	checkAddGraph(t, g)
	// operands are inserted before their consumers
	if g.Node("x").ID() > g.Node("add").ID() {
		t.Fatalf("x inserted after add")
	}
}

func TestReadYAML(t *testing.T) {
	t.Parallel()

	g, err := Read(strings.NewReader(addGraphYAML), FormatYAML)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	checkAddGraph(t, g)
}

func TestWriteReadKeepsQuantizedConst(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{FormatJSON, FormatYAML} {
		g := graph.New("q")
		buf, err := graph.IntBuffer(graph.Uint8, []int64{0, 85, 255})
		if err != nil {
			t.Fatalf("int buffer: %v", err)
		}
		c, err := g.AddConst("c_1", []int{3}, buf)
		if err != nil {
			t.Fatalf("add const: %v", err)
		}
		c.QuantParam = &graph.QuantParam{Scale: []float32{3.0 / 255.0}, ZeroPoint: []int64{85}}

		var out bytes.Buffer
		if err := Write(&out, f, g); err != nil {
			t.Fatalf("%s write: %v", f, err)
		}
		back, err := Read(&out, f)
		if err != nil {
			t.Fatalf("%s read: %v", f, err)
		}
		bc := back.Node("c_1")
		codes, err := bc.Buffer.Int64s()
		if err != nil || bc.DType != graph.Uint8 || codes[1] != 85 {
			t.Fatalf("%s: dtype=%s codes=%v err=%v", f, bc.DType, codes, err)
		}
		if !bc.QuantParam.Layerwise() || bc.QuantParam.ZeroPoint[0] != 85 || bc.QuantParam.Scale[0] != float32(3.0/255.0) {
			t.Fatalf("%s: quant param %+v", f, bc.QuantParam)
		}
	}
}

func TestBuildRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown input":  `{"nodes":[{"name":"r","op":"relu","dtype":"float32","inputs":["nope"]}]}`,
		"duplicate name": `{"nodes":[{"name":"x","op":"input","dtype":"float32"},{"name":"x","op":"input","dtype":"float32"}]}`,
		"cycle":          `{"nodes":[{"name":"a","op":"relu","dtype":"float32","inputs":["b"]},{"name":"b","op":"relu","dtype":"float32","inputs":["a"]}]}`,
		"arity":          `{"nodes":[{"name":"x","op":"input","dtype":"float32"},{"name":"a","op":"add","dtype":"float32","inputs":["x"]}]}`,
		"data length":    `{"nodes":[{"name":"c","op":"const","dtype":"float32","shape":[2],"data":[1]}]}`,
		"unknown op":     `{"nodes":[{"name":"x","op":"lstm","dtype":"float32"}]}`,
		"unknown field":  `{"nodes":[{"name":"x","op":"input","dtype":"float32","colour":"red"}]}`,
		"bad output":     `{"nodes":[{"name":"x","op":"input","dtype":"float32"}],"outputs":["y"]}`,
		"int data":       `{"nodes":[{"name":"c","op":"const","dtype":"int32","shape":[1],"data":[1.5]}]}`,
		"fused on relu":  `{"nodes":[{"name":"x","op":"input","dtype":"float32"},{"name":"r","op":"relu","dtype":"float32","inputs":["x"],"fused_activation":"tanh"}]}`,
		"cast attrs":     `{"nodes":[{"name":"x","op":"input","dtype":"float32","in_data_type":"uint8","out_data_type":"int32"}]}`,
	}
	for name, doc := range cases {
		_, err := Read(strings.NewReader(doc), FormatJSON)
		if !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: expected ErrInvalidDocument, got %v", name, err)
		}
	}
}

func TestLoadSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(src, []byte(strings.Replace(addGraphYAML, "name: add\n", "", 1)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g.Name != "model" {
		t.Fatalf("unnamed graph should take the file name, got %q", g.Name)
	}

	dst := QuantizedPath(src, filepath.Join(dir, "out"))
	if dst != filepath.Join(dir, "out", "model.quant.yaml") {
		t.Fatalf("quantized path: %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := Save(dst, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := Load(dst)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Len() != g.Len() || back.Name != "model" {
		t.Fatalf("reloaded %q with %d nodes", back.Name, back.Len())
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil || len(entries) != 1 {
		t.Fatalf("temp files left behind: %v %v", entries, err)
	}

	if _, err := Load(filepath.Join(dir, "model.onnx")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
