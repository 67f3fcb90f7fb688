// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package exec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executable holds a binary path and the arguments it is to be invoked with.
type Executable struct {
	bin  string
	args []string
}

// NewExecutable accepts an input argument bin which is the path or executable
// name to be ultimately executed.  When bin contains spaces the remainder is
// treated as leading arguments.
func NewExecutable(bin string, args ...string) (*Executable, error) {
	if len(bin) == 0 {
		return nil, fmt.Errorf("binary argument cannot be empty")
	}

	e := &Executable{}

	if strings.Contains(bin, " ") {
		split := strings.Split(bin, " ")
		bin = split[0]
		e.args = split[1:]
	}

	e.bin = bin
	e.args = append(e.args, args...)

	return e, nil
}

// Args returns the arguments the executable is invoked with.
func (e *Executable) Args() []string {
	return e.args
}

// Process prepares an Executable for execution with configured IO and
// environment.
type Process struct {
	executable *Executable
	opts       *ExecOptions
	cmd        *exec.Cmd
}

// NewProcess prepares a process to be executed from a given binary name,
// arguments and optional execution options.
func NewProcess(bin string, args []string, eopts ...ExecOption) (*Process, error) {
	executable, err := NewExecutable(bin, args...)
	if err != nil {
		return nil, err
	}

	return NewProcessFromExecutable(executable, eopts...)
}

// NewProcessFromExecutable prepares a process to be executed from a given
// *Executable object and optional execution options.
func NewProcessFromExecutable(executable *Executable, eopts ...ExecOption) (*Process, error) {
	if executable == nil {
		return nil, fmt.Errorf("cannot prepare process without executable")
	}

	opts, err := NewExecOptions(eopts...)
	if err != nil {
		return nil, err
	}

	return &Process{
		executable: executable,
		opts:       opts,
	}, nil
}

// Cmdline returns the full command line to be executed.
func (p *Process) Cmdline() string {
	return strings.Join(
		append(
			[]string{p.executable.bin},
			p.executable.Args()...,
		),
		" ",
	)
}

// Start the process.
func (p *Process) Start(ctx context.Context) error {
	p.cmd = exec.CommandContext(ctx, p.executable.bin, p.executable.Args()...)

	if p.opts.stdout != nil {
		p.cmd.Stdout = p.opts.stdout
	}

	if p.opts.stderr != nil {
		p.cmd.Stderr = p.opts.stderr
	} else if p.opts.stdout != nil {
		p.cmd.Stderr = p.opts.stdout
	}

	return p.cmd.Start()
}

// Wait for the process to complete.
func (p *Process) Wait() error {
	if p.cmd == nil {
		return fmt.Errorf("process has not been started")
	}

	return p.cmd.Wait()
}

// StartAndWait starts the process and waits for it to complete.
func (p *Process) StartAndWait(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	return p.Wait()
}
