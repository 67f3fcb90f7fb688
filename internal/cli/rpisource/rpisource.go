// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package rpisource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rpisource.sh/board"
	"rpisource.sh/cmdfactory"
	"rpisource.sh/config"
	"rpisource.sh/firmware"
	"rpisource.sh/install"
	"rpisource.sh/internal/ghrepo"
	"rpisource.sh/internal/httpclient"
	"rpisource.sh/internal/update"
	"rpisource.sh/internal/version"
	"rpisource.sh/iostreams"
	"rpisource.sh/log"
)

// docURL is appended to fatal errors so the user has somewhere to go.
const docURL = "https://github.com/" + config.SelfRepo + "#troubleshooting"

// RpiSourceOptions carries the command-line surface of the tool.  The parsed
// values are folded into an immutable config.Config in Pre.
type RpiSourceOptions struct {
	Dest          string `long:"dest" usage:"Directory the kernel source is installed into (default $HOME)"`
	URI           string `long:"uri" usage:"Firmware repository in OWNER/NAME form"`
	Processor     int    `long:"processor" usage:"Override processor detection (0-3)" default:"-1"`
	DefaultConfig bool   `long:"default-config" short:"g" usage:"Generate the default build configuration instead of reusing the running kernel's"`
	NoMake        bool   `long:"nomake" usage:"Skip the modules_prepare build step"`
	Delete        bool   `long:"delete" usage:"Delete the downloaded archive after unpacking"`
	DryRun        bool   `long:"dry-run" short:"s" usage:"Log mutating actions instead of performing them"`
	SkipGcc       bool   `long:"skip-gcc" usage:"Deprecated, has no effect"`
	SkipSpace     bool   `long:"skip-space" usage:"Skip the free disk space check"`
	SkipUpdate    bool   `long:"skip-update" usage:"Skip the self-update check"`
	TagUpdate     bool   `long:"tag-update" usage:"Refresh the local update tag and exit"`
	Quiet         bool   `long:"quiet" short:"q" usage:"Only print warnings and errors"`
	Verbose       bool   `long:"verbose" short:"v" usage:"Print debugging output"`

	argv []string
}

// NewCmd returns the root command of rpi-source.
func NewCmd(argv []string) *cobra.Command {
	opts := &RpiSourceOptions{argv: argv}

	cmd, err := cmdfactory.New(opts, cobra.Command{
		Use:   "rpi-source [FLAGS]",
		Short: "Install the kernel source matching the running Raspberry Pi firmware",
		Long: heredoc.Docf(`
			Install the kernel source matching the running Raspberry Pi firmware.

			rpi-source determines which upstream kernel commit the installed
			firmware was built from, downloads and unpacks that source tree, and
			prepares it so loadable kernel modules can be compiled against the
			running kernel.

			Version:       %s
			Documentation: %s
		`, version.String(), docURL),
		Example: heredoc.Doc(`
			# Install the matching kernel source under $HOME
			$ rpi-source

			# Install under /opt, keep the downloaded archive
			$ rpi-source --dest /opt

			# Show what would be done without touching anything
			$ rpi-source --dry-run`),
		Args: cobra.NoArgs,
	})
	if err != nil {
		panic(err)
	}

	return cmd
}

// Pre folds flags and environment into the run configuration and stores it
// in the command context.
func (opts *RpiSourceOptions) Pre(cmd *cobra.Command, _ []string) error {
	if opts.Processor < -1 || opts.Processor > 3 {
		return cmdfactory.FlagErrorf("--processor must be one of 0, 1, 2, 3")
	}

	if opts.SkipGcc {
		log.G(cmd.Context()).Warn("--skip-gcc is deprecated and has no effect")
	}

	dest := opts.Dest
	if dest == "" {
		home, err := config.HomeDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory: %w", err)
		}

		dest = home
	}

	dest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	uri := opts.URI
	if uri == "" {
		uri = config.FirmwareRepo()
	}

	levels := log.Levels()
	level := levels["info"]
	if opts.Quiet {
		level = levels["warning"]
	} else if opts.Verbose {
		level = levels["trace"]
	}

	ctx := cmd.Context()
	log.G(ctx).SetLevel(level)

	cmd.SetContext(config.WithConfig(ctx, &config.Config{
		Dest:          dest,
		RepoURI:       uri,
		Processor:     opts.Processor,
		DefaultConfig: opts.DefaultConfig,
		NoMake:        opts.NoMake,
		Delete:        opts.Delete,
		DryRun:        opts.DryRun,
		SkipSpace:     opts.SkipSpace,
		SkipUpdate:    opts.SkipUpdate,
		TagUpdate:     opts.TagUpdate,
	}))

	return nil
}

// Run drives the pipeline: self-update check, board identification, kernel
// source resolution, installation.
func (opts *RpiSourceOptions) Run(ctx context.Context, _ []string) error {
	cfg := config.G(ctx)
	client := httpclient.NewHTTPClient(iostreams.G(ctx), opts.Verbose)

	if err := opts.selfUpdate(ctx, client); err != nil {
		return err
	}

	if cfg.TagUpdate {
		return nil
	}

	if info, err := os.Stat(cfg.Dest); err != nil || !info.IsDir() {
		return fmt.Errorf("destination does not exist: %s (see %s)", cfg.Dest, docURL)
	}

	identifier, err := board.NewIdentifier()
	if err != nil {
		return err
	}

	proc, err := identifier.Detect(ctx)
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, docURL)
	}

	log.G(ctx).WithField("processor", proc).Info("identified board")

	repo, err := ghrepo.FromFullName(cfg.RepoURI)
	if err != nil {
		return cmdfactory.FlagErrorWrap(err)
	}

	resolver, err := firmware.NewResolver(repo, proc, client)
	if err != nil {
		return err
	}

	ref, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, docURL)
	}

	log.G(ctx).WithField("commit", ref.GitHash).Info("resolved kernel source")

	installer, err := install.New(ref, proc, client)
	if err != nil {
		return err
	}

	if err := installer.Install(ctx); err != nil {
		if errors.Is(err, install.ErrAlreadyInstalled) {
			fmt.Fprintln(iostreams.G(ctx).Out, err)
			return cmdfactory.ErrSilent
		}

		return fmt.Errorf("%w (see %s)", err, docURL)
	}

	log.G(ctx).WithField("dir", installer.SourceDir(cfg.Dest)).Info("kernel source installed")

	return nil
}

// selfUpdate performs the update check.  When only the tag refresh was
// requested a fetch failure is fatal; during the passive check it degrades
// to assuming the installation is current.
func (opts *RpiSourceOptions) selfUpdate(ctx context.Context, client *http.Client) error {
	cfg := config.G(ctx)

	if cfg.SkipUpdate && !cfg.TagUpdate {
		return nil
	}

	tagFile, err := config.TagFile()
	if err != nil {
		return err
	}

	self, err := ghrepo.FromFullName(config.SelfRepo)
	if err != nil {
		return err
	}

	checker, err := update.NewChecker(self, tagFile, client)
	if err != nil {
		return err
	}

	if cfg.TagUpdate {
		ref, err := checker.LatestRef(ctx)
		if err != nil {
			return err
		}

		if err := checker.WriteTag(ref); err != nil {
			return err
		}

		log.G(ctx).WithField("ref", ref).Info("update tag refreshed")
		return nil
	}

	stale, ref, err := checker.Stale(ctx)
	if err != nil {
		log.G(ctx).WithError(err).Warn("could not check for updates, assuming current")
		return nil
	}

	if !stale {
		log.G(ctx).Debug("rpi-source is up to date")
		return nil
	}

	if cfg.DryRun {
		log.G(ctx).WithField("ref", ref).Info("dry-run: update to latest release")
		return nil
	}

	// Does not return on success: the process re-executes itself.
	return checker.Update(ctx, ref, opts.argv)
}

// Main builds the root command, wires the ambient context and executes.
func Main(args []string) int {
	cmd := NewCmd(args)
	cmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.Formatter = new(log.TextFormatter)
	logger.SetOutput(iostreams.IO.ErrOut)

	ctx = log.WithLogger(ctx, logger)
	ctx = iostreams.WithIOStreams(ctx, iostreams.IO)

	return cmdfactory.Main(ctx, cmd)
}
