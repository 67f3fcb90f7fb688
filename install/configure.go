// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cli/safeexec"

	"rpisource.sh/config"
	"rpisource.sh/exec"
	"rpisource.sh/iostreams"
	"rpisource.sh/log"
	"rpisource.sh/make"
)

// configure writes the resolved kernel configuration into the tree, or
// generates the processor family's default configuration when none was
// resolved or the caller forced it.
func (i *Installer) configure(ctx context.Context, sourceDir string) error {
	cfg := config.G(ctx)

	if !cfg.DefaultConfig && len(i.ref.Config) > 0 {
		log.G(ctx).Info("reusing the running kernel's configuration")
		return i.writeFile(ctx, filepath.Join(sourceDir, ".config"), i.ref.Config, 0o644)
	}

	target, err := i.proc.DefconfigTarget()
	if err != nil {
		return err
	}

	log.G(ctx).WithField("target", target).Info("generating default configuration")

	return i.runMake(ctx, sourceDir, target)
}

// modulesPrepare runs the build step generating the headers and metadata
// needed to compile loadable modules against the tree.
func (i *Installer) modulesPrepare(ctx context.Context, sourceDir string) error {
	log.G(ctx).Info("preparing for module builds")

	return i.runMake(ctx, sourceDir, "modules_prepare")
}

func (i *Installer) runMake(ctx context.Context, sourceDir string, target string) error {
	dryRun := config.G(ctx).DryRun

	bin, err := safeexec.LookPath(make.DefaultBinaryName)
	if err != nil {
		if !dryRun {
			return fmt.Errorf("GNU make is required but was not found: %w", err)
		}

		bin = make.DefaultBinaryName
	}

	streams := iostreams.G(ctx)

	m, err := make.New(
		make.WithBinPath(bin),
		make.WithDirectory(sourceDir),
		make.WithTarget(target),
		make.WithExecOptions(
			exec.WithStdout(streams.Out),
			exec.WithStderr(streams.ErrOut),
		),
	)
	if err != nil {
		return err
	}

	if dryRun {
		log.G(ctx).WithField("cmd", m.Cmdline()).Info("dry-run: exec")
		return nil
	}

	log.G(ctx).WithField("cmd", m.Cmdline()).Debug("exec")

	if err := m.Execute(ctx); err != nil {
		return fmt.Errorf("make %s failed: %w", target, err)
	}

	return nil
}
