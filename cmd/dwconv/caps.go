package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/born-ml/dwconv/internal/npuref"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/sys/cpu"
)

// capabilities reports what the host offers the kernel.
type capabilities struct {
	GOOS      string          `json:"goos"`
	GOARCH    string          `json:"goarch"`
	NumCPU    int             `json:"num_cpu"`
	Reference bool            `json:"reference_backend"`
	Features  map[string]bool `json:"features,omitempty"`
}

func capsCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:  "caps",
		Usage: "Print the reference backend flag and host CPU features",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return writeCaps(os.Stdout, hostCaps(), asJSON)
		},
	}
}

func hostCaps() capabilities {
	return capabilities{
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		Reference: npuref.Exists(),
		Features:  cpuFeatures(runtime.GOARCH),
	}
}

func cpuFeatures(arch string) map[string]bool {
	switch arch {
	case "amd64":
		return map[string]bool{
			"sse2":     cpu.X86.HasSSE2,
			"sse41":    cpu.X86.HasSSE41,
			"sse42":    cpu.X86.HasSSE42,
			"avx":      cpu.X86.HasAVX,
			"avx2":     cpu.X86.HasAVX2,
			"fma":      cpu.X86.HasFMA,
			"avx512f":  cpu.X86.HasAVX512F,
			"avx512bw": cpu.X86.HasAVX512BW,
			"avx512vl": cpu.X86.HasAVX512VL,
		}
	case "arm64":
		return map[string]bool{
			"asimd":   cpu.ARM64.HasASIMD,
			"fp":      cpu.ARM64.HasFP,
			"asimdhp": cpu.ARM64.HasASIMDHP,
			"asimddp": cpu.ARM64.HasASIMDDP,
			"sve":     cpu.ARM64.HasSVE,
			"sve2":    cpu.ARM64.HasSVE2,
		}
	default:
		return nil
	}
}

func writeCaps(w io.Writer, c capabilities, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, _ = fmt.Fprintf(w, "GOOS: %s\n", c.GOOS)
	_, _ = fmt.Fprintf(w, "GOARCH: %s\n", c.GOARCH)
	_, _ = fmt.Fprintf(w, "NumCPU: %d\n", c.NumCPU)
	_, _ = fmt.Fprintf(w, "Reference backend: %v\n", c.Reference)
	for _, name := range sortedKeys(c.Features) {
		_, _ = fmt.Fprintf(w, "  %-9s %v\n", name+":", c.Features[name])
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
