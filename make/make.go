// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package make

import (
	"context"

	"rpisource.sh/exec"
)

const DefaultBinaryName = "make"

// Make is a prepared invocation of GNU Make.
type Make struct {
	opts    *MakeOptions
	process *exec.Process
}

// New prepares a GNU Make command call from the provided options.
func New(mopts ...MakeOption) (*Make, error) {
	opts, err := NewMakeOptions(mopts...)
	if err != nil {
		return nil, err
	}

	if len(opts.bin) == 0 {
		opts.bin = DefaultBinaryName
	}

	executable, err := exec.NewExecutable(opts.bin, opts.Args()...)
	if err != nil {
		return nil, err
	}

	process, err := exec.NewProcessFromExecutable(executable, opts.eopts...)
	if err != nil {
		return nil, err
	}

	return &Make{
		opts:    opts,
		process: process,
	}, nil
}

// Cmdline returns the full make command line to be executed.
func (m *Make) Cmdline() string {
	return m.process.Cmdline()
}

// Execute starts and waits on the prepared make invocation.
func (m *Make) Execute(ctx context.Context) error {
	return m.process.StartAndWait(ctx)
}
