// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package make

import (
	"fmt"
	"sort"

	"rpisource.sh/exec"
)

// MakeOptions represents the command-line arguments which are passed to the
// invocation of GNU Make.
type MakeOptions struct {
	bin       string
	directory string
	targets   []string
	vars      map[string]string
	eopts     []exec.ExecOption
}

type MakeOption func(mo *MakeOptions) error

// NewMakeOptions accepts a series of options and returns a rendered
// *MakeOptions structure.
func NewMakeOptions(mopts ...MakeOption) (*MakeOptions, error) {
	mo := &MakeOptions{}

	for _, o := range mopts {
		if err := o(mo); err != nil {
			return nil, fmt.Errorf("could not apply option: %w", err)
		}
	}

	return mo, nil
}

// Args serializes the options into the argument vector passed to make:
// flags, then sorted VAR=VALUE assignments, then targets.
func (mo *MakeOptions) Args() []string {
	var args []string

	if mo.directory != "" {
		args = append(args, "-C", mo.directory)
	}

	keys := make([]string, 0, len(mo.vars))
	for k := range mo.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k+"="+mo.vars[k])
	}

	args = append(args, mo.targets...)

	return args
}

// WithDirectory changes to the directory before doing anything.  Equivalent
// to the flags -C|--directory.
func WithDirectory(dir string) MakeOption {
	return func(mo *MakeOptions) error {
		mo.directory = dir
		return nil
	}
}

// WithTarget appends targets to make (omission will invoke the default
// target).
func WithTarget(target ...string) MakeOption {
	return func(mo *MakeOptions) error {
		mo.targets = append(mo.targets, target...)
		return nil
	}
}

// WithVar sets a variable and its value before invoking make.
func WithVar(key, val string) MakeOption {
	return func(mo *MakeOptions) error {
		if mo.vars == nil {
			mo.vars = make(map[string]string)
		}

		mo.vars[key] = val

		return nil
	}
}

// WithBinPath sets an alternative path to the GNU Make binary executable.
func WithBinPath(path string) MakeOption {
	return func(mo *MakeOptions) error {
		mo.bin = path
		return nil
	}
}

// WithExecOptions offers configuration options to the underlying process
// executor.
func WithExecOptions(eopts ...exec.ExecOption) MakeOption {
	return func(mo *MakeOptions) error {
		mo.eopts = append(mo.eopts, eopts...)
		return nil
	}
}
