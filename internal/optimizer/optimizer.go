// Package optimizer drives named graph rewrites selected through Options.
package optimizer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/internal/metrics"
	"github.com/samcharles93/actquant/internal/pass"
	"github.com/samcharles93/actquant/pkg/graph"
)

// Optimizer applies the algorithms enabled in its Options.
type Optimizer struct {
	opts    *Options
	metrics *metrics.Collectors
}

// New returns an Optimizer. A nil collector set disables metrics.
func New(opts *Options, m *metrics.Collectors) *Optimizer {
	if opts == nil {
		opts = &Options{}
	}
	return &Optimizer{opts: opts, metrics: m}
}

// Options returns the options the optimizer was built with.
func (o *Optimizer) Options() *Options { return o.opts }

// Result describes one Quantize call.
type Result struct {
	ID     string        `json:"id"`
	Ran    bool          `json:"ran"`
	Report pass.Report   `json:"report"`
	Took   time.Duration `json:"took_ns"`
}

// Quantize runs activation quantization on g in place when the algorithm is
// enabled. On error g holds whatever the phases changed before failing.
func (o *Optimizer) Quantize(ctx context.Context, g *graph.Graph) (Result, error) {
	res := Result{ID: uuid.NewString()}
	if !o.opts.Query(QuantizeActivation) {
		return res, nil
	}
	p, err := o.opts.Precision()
	if err != nil {
		return res, err
	}

	log := logger.FromContext(ctx).With("run", res.ID, "graph", g.Name, "precision", p.String())
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	res.Report, err = pass.Run(ctx, g, p)
	res.Took = time.Since(start)
	res.Ran = true
	if o.metrics != nil {
		o.metrics.RecordRun(res.Report, res.Took, err)
	}
	if err != nil {
		log.Error("quantization failed", "error", err, "took", res.Took)
		return res, err
	}

	log.Info("quantization done",
		"nodes", g.Len(),
		"activations", res.Report.Activations,
		"fixed_range", res.Report.FixedRange,
		"integer_scale", res.Report.IntegerScale,
		"consts_cloned", res.Report.ConstsCloned,
		"took", res.Took,
	)
	return res, nil
}
