// Package api serves quantization runs over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/actquant/internal/graphio"
	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/internal/metrics"
	"github.com/samcharles93/actquant/internal/optimizer"
	"github.com/samcharles93/actquant/internal/pass"
	"github.com/samcharles93/actquant/pkg/graph"
	"github.com/samcharles93/actquant/pkg/quant"
)

type Config struct {
	// Precision is used when a request does not name one.
	Precision quant.Precision
	Metrics   *metrics.Collectors
	// Gatherer backs GET /metrics. Defaults to the process registry.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
	// MaxRuns bounds the number of results kept for GET /v1/quantize/:id.
	MaxRuns int
}

type Server struct {
	precision quant.Precision
	metrics   *metrics.Collectors
	promh     http.Handler
	log       logger.Logger
	store     *RunStore
	clock     func() time.Time
}

func NewServer(cfg Config) *Server {
	if !cfg.Precision.Valid() {
		cfg.Precision = quant.U8
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Server{
		precision: cfg.Precision,
		metrics:   cfg.Metrics,
		promh:     promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}),
		log:       cfg.Logger,
		store:     NewRunStore(cfg.MaxRuns),
		clock:     time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/quantize", s.handleQuantize)
	e.GET("/v1/quantize/:id", s.handleGetRun)
	e.DELETE("/v1/quantize/:id", s.handleDeleteRun)
	e.GET("/v1/ops", s.handleListOps)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)
}

func (s *Server) handleQuantize(c *echo.Context) error {
	req, err := decodeJSON[QuantizeRequest](c.Request().Body)
	if err != nil {
		return writeFailure(c, err)
	}
	if req.Graph == nil {
		return writeBadRequest(c, "graph is required")
	}

	var opts optimizer.Options
	if err := opts.Enable(optimizer.QuantizeActivation); err != nil {
		return writeFailure(c, err)
	}
	precision := req.Precision
	if precision == "" {
		precision = s.precision.String()
	}
	if err := opts.Param(optimizer.QuantizeOutputType, precision); err != nil {
		return writeFailure(c, err)
	}

	g, err := graphio.Build(req.Graph)
	if err != nil {
		return writeFailure(c, err)
	}

	ctx := logger.WithContext(c.Request().Context(), s.log)
	res, err := optimizer.New(&opts, s.metrics).Quantize(ctx, g)
	if err != nil {
		return writeFailure(c, err)
	}
	doc, err := graphio.FromGraph(g)
	if err != nil {
		return writeFailure(c, err)
	}

	resp := QuantizeResponse{
		ID:        "quant_" + res.ID,
		Object:    "quantization",
		CreatedAt: s.clock().Unix(),
		Precision: opts.Value(optimizer.QuantizeOutputType),
		Graph:     doc,
		Report:    res.Report,
		TookMS:    float64(res.Took.Microseconds()) / 1000,
	}
	s.store.Put(resp)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetRun(c *echo.Context) error {
	resp, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "quantization run not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "quantization run not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "quantization.deleted",
		"deleted": true,
	})
}

func (s *Server) handleListOps(c *echo.Context) error {
	kinds := graph.OpKinds()
	out := ListResponse[OpInfo]{Object: "list", Data: make([]OpInfo, 0, len(kinds))}
	for _, k := range kinds {
		sig := k.Signature()
		names, all, ok := pass.ConstInputs(k)
		out.Data = append(out.Data, OpInfo{
			Op:          k.String(),
			Inputs:      sig.Inputs,
			Variadic:    sig.Variadic,
			ConstInputs: names,
			AllInputs:   all,
			Supported:   ok,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	s.promh.ServeHTTP(c.Response(), c.Request())
	return nil
}
