// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernel provides the graph runtime that kernels plug into: a
// registry of kernel setup functions per operation and backend, graphs that
// own nodes, and the parameter slots nodes execute with.
//
// # Lifecycle
//
// A kernel is Unregistered until queried, Queried once it has bound its name,
// entry point and schema, Constructed once attached to a node, Executable once
// its parameters are bound, and Released when its node is removed.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/dwconv/backend/cpu"
//	    "github.com/born-ml/dwconv/kernel"
//	)
//
//	r := kernel.NewRegistry()
//	cpu.New().Register(r)
//
//	g := kernel.NewGraph(nil)
//	defer g.Release()
//	node, _, err := r.Setup(g, cpu.OpName, inputs, outputs, params.Named())
//	if err != nil {
//	    return err
//	}
//	err = node.Execute(ctx)
package kernel
