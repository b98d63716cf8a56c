package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/logger"
	"github.com/born-ml/dwconv/internal/parallel"
	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/urfave/cli/v3"
)

// benchSpec sizes a benchmark run.
type benchSpec struct {
	length, channels, batch, kernelSize int
	iterations                          int
	withBias                            bool
	seed                                int64
}

// benchResult summarizes a benchmark run.
type benchResult struct {
	Invocations int
	Workers     int
	Elapsed     time.Duration
	Pool        bufpool.Stats
}

func benchCmd() *cli.Command {
	var (
		spec    benchSpec
		conv    convValues
		workers int
		poolMax int
	)

	flags := []cli.Flag{
		&cli.IntFlag{Name: "length", Usage: "input sequence length", Value: 1024, Destination: &spec.length},
		&cli.IntFlag{Name: "channels", Usage: "input channels", Value: 32, Destination: &spec.channels},
		&cli.IntFlag{Name: "batch", Usage: "batch size", Value: 1, Destination: &spec.batch},
		&cli.IntFlag{Name: "kernel-size", Usage: "kernel taps", Value: 3, Destination: &spec.kernelSize},
		&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "independent invocations to run", Value: 64, Destination: &spec.iterations},
		&cli.BoolFlag{Name: "bias", Usage: "include an int32 bias", Destination: &spec.withBias},
		&cli.Int64Flag{Name: "seed", Usage: "random seed for operand data", Value: 1, Destination: &spec.seed},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "concurrent workers (0 = one per CPU)", Destination: &workers},
		&cli.IntFlag{Name: "pool-max-buffers", Usage: "idle buffers kept per size class", Destination: &poolMax},
	}
	flags = append(flags, convFlags(&conv)...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "bench",
		Usage: "Run independent kernel invocations concurrently and report timing",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyLoggingConfig(c, cfg)
			applyExecConfig(c, cfg, &workers, &poolMax)
			log := newLogger(os.Stderr)

			res, err := bench(ctx, log, spec, conv, parallel.WithWorkers(workers), bufpool.New(poolMax))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			printBench(os.Stdout, res)
			return nil
		},
	}
}

// bench sets up spec.iterations independent nodes over one shared pool and
// executes them concurrently.
func bench(ctx context.Context, log logger.Logger, spec benchSpec, conv convValues, cfg parallel.Config, pool *bufpool.Pool) (benchResult, error) {
	if spec.iterations <= 0 {
		return benchResult{}, fmt.Errorf("iterations must be positive, got %d", spec.iterations)
	}

	rng := rand.New(rand.NewSource(spec.seed)) //nolint:gosec // benchmark data, not security sensitive
	g := kernel.NewGraph(log)
	defer g.Release()
	r := newRegistry(pool)

	job, err := randomJob(rng, spec, conv)
	if err != nil {
		return benchResult{}, err
	}

	nodes := make([]*kernel.Node, spec.iterations)
	for i := range nodes {
		if _, nodes[i], err = job.prepare(g, r); err != nil {
			return benchResult{}, err
		}
	}

	start := time.Now()
	err = parallel.ForErr(len(nodes), func(i int) error {
		return nodes[i].Execute(ctx)
	}, cfg)
	elapsed := time.Since(start)
	if err != nil {
		return benchResult{}, err
	}

	res := benchResult{
		Invocations: len(nodes),
		Workers:     cfg.NumWorkers,
		Elapsed:     elapsed,
		Pool:        pool.Stats(),
	}
	log.Debug("bench done", "invocations", res.Invocations, "elapsed", res.Elapsed, "pool_hits", res.Pool.Hits)
	return res, nil
}

func randomJob(rng *rand.Rand, spec benchSpec, conv convValues) (convJob, error) {
	p, err := conv.params()
	if err != nil {
		return convJob{}, err
	}
	job := convJob{
		params:   p,
		outQuant: tensor.Quantization{Scale: 0.1, ZeroPoint: 128},
	}

	job.input, err = tensor.NewQuantized(tensor.Shape{spec.length, spec.channels, spec.batch}, tensor.Uint8,
		tensor.Quantization{Scale: 0.05, ZeroPoint: 128})
	if err != nil {
		return convJob{}, fmt.Errorf("input: %w", err)
	}
	rng.Read(job.input.AsUint8())

	cOut := spec.channels * int(p.Multiplier)
	job.kernel, err = tensor.NewQuantized(tensor.Shape{spec.kernelSize, cOut, 1}, tensor.Uint8,
		tensor.Quantization{Scale: 0.02, ZeroPoint: 128})
	if err != nil {
		return convJob{}, fmt.Errorf("kernel: %w", err)
	}
	rng.Read(job.kernel.AsUint8())

	if spec.withBias {
		values := make([]int32, cOut)
		for i := range values {
			values[i] = rng.Int31n(2001) - 1000
		}
		if job.bias, err = tensor.FromInt32(values, tensor.Shape{cOut}); err != nil {
			return convJob{}, fmt.Errorf("bias: %w", err)
		}
	}
	return job, nil
}

func printBench(w io.Writer, res benchResult) {
	per := res.Elapsed / time.Duration(res.Invocations)
	_, _ = fmt.Fprintf(w, "invocations: %d\n", res.Invocations)
	_, _ = fmt.Fprintf(w, "workers:     %d\n", res.Workers)
	_, _ = fmt.Fprintf(w, "elapsed:     %s\n", res.Elapsed)
	_, _ = fmt.Fprintf(w, "per call:    %s\n", per)
	_, _ = fmt.Fprintf(w, "pool:        %d allocated, %d hits, %d misses, %d idle\n",
		res.Pool.Allocated, res.Pool.Hits, res.Pool.Misses, res.Pool.Pooled)
}
