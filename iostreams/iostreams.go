// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package iostreams

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IOStreams bundles the three standard streams of the process so that
// commands and helpers never reach for os.Stdout directly.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// System returns the IOStreams of the running process.
func System() *IOStreams {
	return &IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

// Test returns an IOStreams backed by the provided writers, suitable for use
// in tests.
func Test(in io.Reader, out, errOut io.Writer) *IOStreams {
	return &IOStreams{
		In:     in,
		Out:    out,
		ErrOut: errOut,
	}
}

// IsStderrTTY reports whether ErrOut is attached to an interactive terminal.
func (s *IOStreams) IsStderrTTY() bool {
	if f, ok := s.ErrOut.(*os.File); ok {
		return isTerminal(f)
	}

	return false
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
