package main

import (
	"context"
	"fmt"
	"os"

	"github.com/born-ml/dwconv/internal/bufpool"
	"github.com/born-ml/dwconv/internal/kernel"
	"github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/born-ml/dwconv/internal/logger"
	"github.com/born-ml/dwconv/internal/safetensors"
	"github.com/born-ml/dwconv/internal/tensor"
	"github.com/urfave/cli/v3"
)

func runCmd() *cli.Command {
	var (
		inPath, outPath string
		inputName       string
		kernelName      string
		biasName        string
		outputName      string
		outScale        float64
		outZeroPoint    int64
		poolMax         int
		conv            convValues
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "SafeTensors file holding the operands", Required: true, Destination: &inPath},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "SafeTensors file to write the output to", Required: true, Destination: &outPath},
		&cli.StringFlag{Name: "input-name", Usage: "name of the input tensor", Value: "input", Destination: &inputName},
		&cli.StringFlag{Name: "kernel-name", Usage: "name of the kernel tensor", Value: "kernel", Destination: &kernelName},
		&cli.StringFlag{Name: "bias-name", Usage: "name of the optional int32 bias tensor", Value: "bias", Destination: &biasName},
		&cli.StringFlag{Name: "output-name", Usage: "name of the written output tensor", Value: "output", Destination: &outputName},
		&cli.Float64Flag{Name: "out-scale", Usage: "output quantization scale", Required: true, Destination: &outScale},
		&cli.Int64Flag{Name: "out-zero-point", Usage: "output quantization zero point", Destination: &outZeroPoint},
		&cli.IntFlag{Name: "pool-max-buffers", Usage: "idle buffers kept per size class", Destination: &poolMax},
	}
	flags = append(flags, convFlags(&conv)...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run the kernel on tensors from a SafeTensors file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyLoggingConfig(c, cfg)
			applyExecConfig(c, cfg, nil, &poolMax)
			log := newLogger(os.Stderr)

			job, err := loadJob(inPath, inputName, kernelName, biasName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if job.params, err = conv.params(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if outZeroPoint < 0 || outZeroPoint > 255 {
				return cli.Exit(fmt.Sprintf("error: --out-zero-point %d outside the uint8 range", outZeroPoint), 1)
			}
			job.outQuant = tensor.Quantization{
				Scale:     float32(outScale),
				ZeroPoint: int32(outZeroPoint),
			}

			out, err := execute(ctx, log, job, bufpool.New(poolMax))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			meta := map[string]string{"op": cpu.OpName}
			if err := safetensors.Write(outPath, map[string]*tensor.RawTensor{outputName: out}, meta); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", outPath, err), 1)
			}
			log.Info("output written", "path", outPath, "shape", out.Shape(), "quant", out.Quant())
			return nil
		},
	}
}

// loadJob reads the operands of a job from a SafeTensors file. The bias is
// loaded only when the file has a tensor of that name.
func loadJob(path, inputName, kernelName, biasName string) (convJob, error) {
	r, err := safetensors.Open(path)
	if err != nil {
		return convJob{}, err
	}
	defer func() { _ = r.Close() }()

	var job convJob
	if job.input, err = r.LoadTensor(inputName); err != nil {
		return convJob{}, err
	}
	if job.kernel, err = r.LoadTensor(kernelName); err != nil {
		return convJob{}, err
	}
	if _, err := r.TensorInfo(biasName); err == nil {
		if job.bias, err = r.LoadTensor(biasName); err != nil {
			return convJob{}, err
		}
	}
	return job, nil
}

// execute runs one job in a fresh graph and returns the output tensor.
func execute(ctx context.Context, log logger.Logger, job convJob, alloc bufpool.Allocator) (*tensor.RawTensor, error) {
	g := kernel.NewGraph(log)
	defer g.Release()

	out, node, err := job.prepare(g, newRegistry(alloc))
	if err != nil {
		return nil, err
	}
	log.Debug("node ready", "node", node.ID, "params", job.params)

	if err := node.Execute(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
