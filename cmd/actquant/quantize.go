package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/actquant/internal/graphio"
	"github.com/samcharles93/actquant/internal/logger"
	"github.com/samcharles93/actquant/internal/metrics"
	"github.com/samcharles93/actquant/internal/optimizer"
)

// fileResult is one row of the quantize summary.
type fileResult struct {
	In, Out string
	Nodes   int
	Result  optimizer.Result
}

func quantizeCmd() *cli.Command {
	var (
		precision string
		outDir    string
		format    string
		jobs      int64
	)
	return &cli.Command{
		Name:      "quantize",
		Usage:     "Quantize the activations of one or more graph files",
		ArgsUsage: "<graph.json|graph.yaml>...",
		Flags: []cli.Flag{
			precisionFlag(&precision),
			&cli.StringFlag{
				Name:        "out-dir",
				Aliases:     []string{"o"},
				Usage:       "output directory (default: next to each input)",
				Destination: &outDir,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (json, yaml; default: same as input)",
				Destination: &format,
			},
			&cli.Int64Flag{
				Name:        "jobs",
				Aliases:     []string{"j"},
				Usage:       "files processed in parallel",
				Value:       4,
				Destination: &jobs,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyQuantizeConfig(cmd, cfg, &precision, &outDir, &format, &jobs)
			files := cmd.Args().Slice()
			if len(files) == 0 {
				return errors.New("quantize: at least one graph file is required")
			}

			var opts optimizer.Options
			if err := opts.Enable(optimizer.QuantizeActivation); err != nil {
				return err
			}
			if err := opts.Param(optimizer.QuantizeOutputType, precision); err != nil {
				return fmt.Errorf("quantize: %w", err)
			}
			var outFormat graphio.Format
			if format != "" {
				f, err := graphio.ParseFormat(format)
				if err != nil {
					return fmt.Errorf("quantize: %w", err)
				}
				outFormat = f
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			results, err := quantizeFiles(ctx, optimizer.New(&opts, metrics.Default), files, outDir, outFormat, int(jobs))
			if len(results) > 0 {
				renderSummary(stdout(cmd), results)
			}
			return err
		},
	}
}

// quantizeFiles processes files with at most jobs in flight. Each goroutine
// owns its graph. The first failure cancels files not yet started.
func quantizeFiles(ctx context.Context, opt *optimizer.Optimizer, files []string, outDir string, outFormat graphio.Format, jobs int) ([]fileResult, error) {
	if jobs < 1 {
		jobs = 1
	}
	outs, err := outputPaths(files, outDir, outFormat)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	var mu sync.Mutex
	results := make([]fileResult, 0, len(files))
	for i, in := range files {
		out := outs[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := quantizeFile(logger.WithContext(ctx, log.With("file", in)), opt, in, out)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	err = eg.Wait()
	sortResults(results, files)
	return results, err
}

// outputPaths maps each input to its output file. Two inputs that would
// write the same file are rejected before anything runs.
func outputPaths(files []string, outDir string, outFormat graphio.Format) ([]string, error) {
	outs := make([]string, len(files))
	owner := make(map[string]string, len(files))
	for i, in := range files {
		out := graphio.QuantizedPath(in, outDir)
		if outFormat != "" {
			out = strings.TrimSuffix(out, filepath.Ext(out)) + outFormat.Ext()
		}
		key := filepath.Clean(out)
		if prev, ok := owner[key]; ok {
			return nil, fmt.Errorf("quantize: %s and %s both write %s", prev, in, out)
		}
		owner[key] = in
		outs[i] = out
	}
	return outs, nil
}

func quantizeFile(ctx context.Context, opt *optimizer.Optimizer, in, out string) (fileResult, error) {
	g, err := graphio.Load(in)
	if err != nil {
		return fileResult{}, err
	}
	res, err := opt.Quantize(ctx, g)
	if err != nil {
		return fileResult{}, err
	}
	if err := graphio.Save(out, g); err != nil {
		return fileResult{}, err
	}
	return fileResult{In: in, Out: out, Nodes: g.Len(), Result: res}, nil
}

// sortResults restores command-line order.
func sortResults(results []fileResult, files []string) {
	pos := make(map[string]int, len(files))
	for i, f := range files {
		pos[f] = i
	}
	slices.SortFunc(results, func(a, b fileResult) int { return pos[a.In] - pos[b.In] })
}

func renderSummary(w io.Writer, results []fileResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"INPUT", "OUTPUT", "NODES", "ACTIVATIONS", "FIXED", "INT SCALE", "CONSTS", "TOOK"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	data := make([][]string, 0, len(results))
	for _, r := range results {
		rep := r.Result.Report
		data = append(data, []string{
			r.In,
			r.Out,
			strconv.Itoa(r.Nodes),
			strconv.Itoa(rep.Activations),
			strconv.Itoa(rep.FixedRange),
			strconv.Itoa(rep.IntegerScale),
			strconv.Itoa(rep.ConstsCloned),
			r.Result.Took.Round(time.Microsecond).String(),
		})
	}
	table.AppendBulk(data)
	table.Render()
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
