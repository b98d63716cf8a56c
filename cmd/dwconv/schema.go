package main

import (
	"context"
	"io"
	"os"

	"github.com/born-ml/dwconv/internal/kernel/cpu"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

type schemaParam struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	State     string `json:"state"`
}

type schemaDoc struct {
	Op     string        `json:"op"`
	Kernel string        `json:"kernel"`
	Params []schemaParam `json:"params"`
}

func schemaCmd() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the kernel's parameter schema as JSON",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return writeSchema(os.Stdout)
		},
	}
}

func kernelSchema() schemaDoc {
	defs := cpu.ParamDefs()
	doc := schemaDoc{
		Op:     cpu.OpName,
		Kernel: cpu.KernelName,
		Params: make([]schemaParam, len(defs)),
	}
	for i, d := range defs {
		doc.Params[i] = schemaParam{
			Index:     i,
			Name:      cpu.ParamName(i),
			Direction: d.Direction.String(),
			Type:      d.Type.String(),
			State:     d.State.String(),
		}
	}
	return doc
}

func writeSchema(w io.Writer) error {
	data, err := json.MarshalIndent(kernelSchema(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
