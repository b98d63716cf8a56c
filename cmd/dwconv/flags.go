package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/born-ml/dwconv/internal/logger"
	"github.com/urfave/cli/v3"
)

var (
	logLevel  string
	logFormat string
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// newLogger builds the command logger from the logging flags.
func newLogger(w io.Writer) logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	return logger.ByFormat(w, logFormat, level)
}

// convValues holds the convolution flags of one command.
type convValues struct {
	stride, padFront, padEnd, dilation, multiplier int64
}

func convFlags(v *convValues) []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "stride", Usage: "step between output positions", Value: 1, Destination: &v.stride},
		&cli.Int64Flag{Name: "pad-front", Usage: "implicit zero elements before the sequence", Destination: &v.padFront},
		&cli.Int64Flag{Name: "pad-end", Usage: "implicit zero elements after the sequence", Destination: &v.padEnd},
		&cli.Int64Flag{Name: "dilation", Usage: "spacing between kernel taps", Value: 1, Destination: &v.dilation},
		&cli.Int64Flag{Name: "multiplier", Usage: "output channels per input channel", Value: 1, Destination: &v.multiplier},
	}
}

// params converts the flag values, rejecting any outside the int32 range.
func (v convValues) params() (cpu.Conv1DParams, error) {
	var p cpu.Conv1DParams
	for _, f := range []struct {
		name string
		val  int64
		dst  *int32
	}{
		{"stride", v.stride, &p.Stride},
		{"pad-front", v.padFront, &p.PadFront},
		{"pad-end", v.padEnd, &p.PadEnd},
		{"dilation", v.dilation, &p.Dilation},
		{"multiplier", v.multiplier, &p.Multiplier},
	} {
		if f.val < math.MinInt32 || f.val > math.MaxInt32 {
			return cpu.Conv1DParams{}, fmt.Errorf("--%s %d out of range", f.name, f.val)
		}
		*f.dst = int32(f.val)
	}
	return p, nil
}
