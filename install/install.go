// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package install materializes a resolved kernel source tree at the
// destination and prepares it for building loadable modules.  Steps run
// strictly in sequence; the first failure aborts the run and re-running is
// the recovery path.
package install

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cli/safeexec"

	"rpisource.sh/archive"
	"rpisource.sh/board"
	"rpisource.sh/config"
	"rpisource.sh/exec"
	"rpisource.sh/firmware"
	"rpisource.sh/internal/ghrepo"
	"rpisource.sh/iostreams"
	"rpisource.sh/log"
)

// ErrAlreadyInstalled signals that the destination already holds the source
// tree for the resolved kernel commit.  It is a normal stop condition, not a
// failure, though the process still exits non-zero.
var ErrAlreadyInstalled = errors.New("kernel source is already installed")

const (
	scmversionFile = ".scmversion"
	symversFile    = "Module.symvers"
	ncursesHeader  = "/usr/include/ncurses.h"
)

// Installer applies a resolved KernelRef to the destination directory.
type Installer struct {
	ref    *firmware.KernelRef
	proc   board.ProcessorType
	client *http.Client

	modulesDir    string
	ncursesHeader string
}

type InstallerOption func(*Installer) error

// WithModulesDir overrides the directory holding the running kernel's module
// metadata, normally /lib/modules/$(uname -r).
func WithModulesDir(dir string) InstallerOption {
	return func(i *Installer) error {
		i.modulesDir = dir
		return nil
	}
}

// WithNcursesHeader overrides the header probed by the menuconfig advisory
// check.
func WithNcursesHeader(path string) InstallerOption {
	return func(i *Installer) error {
		i.ncursesHeader = path
		return nil
	}
}

// New returns an Installer for the resolved kernel reference.
func New(ref *firmware.KernelRef, proc board.ProcessorType, client *http.Client, opts ...InstallerOption) (*Installer, error) {
	if ref == nil || ref.GitHash == "" {
		return nil, fmt.Errorf("cannot install without a resolved kernel commit")
	}

	if client == nil {
		client = http.DefaultClient
	}

	i := &Installer{
		ref:           ref,
		proc:          proc,
		client:        client,
		ncursesHeader: ncursesHeader,
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// SourceDir returns the versioned directory the tree is unpacked into.
func (i *Installer) SourceDir(dest string) string {
	return filepath.Join(dest, "linux-"+i.ref.GitHash)
}

// Tarball returns the path the source archive is downloaded to.
func (i *Installer) Tarball(dest string) string {
	return i.SourceDir(dest) + ".tar.gz"
}

// Install runs the installation sequence.
func (i *Installer) Install(ctx context.Context) error {
	cfg := config.G(ctx)
	dest := cfg.Dest
	sourceDir := i.SourceDir(dest)
	tarball := i.Tarball(dest)

	if _, err := os.Stat(sourceDir); err == nil {
		return fmt.Errorf("%s: %w", sourceDir, ErrAlreadyInstalled)
	}

	if !cfg.SkipSpace {
		if err := checkFreeSpace(ctx, dest); err != nil {
			return err
		}
	}

	if err := i.fetchSource(ctx, tarball, sourceDir); err != nil {
		return err
	}

	// The unpacked tree is not a live checkout; the sentinel stops the build
	// system from probing for one.
	if err := i.writeFile(ctx, filepath.Join(sourceDir, scmversionFile), []byte("\n"), 0o644); err != nil {
		return fmt.Errorf("could not mark source tree: %w", err)
	}

	if err := i.symlink(ctx, sourceDir, filepath.Join(dest, "linux")); err != nil {
		return err
	}

	if err := i.linkModules(ctx, filepath.Join(dest, "linux")); err != nil {
		return err
	}

	if err := i.configure(ctx, sourceDir); err != nil {
		return err
	}

	if err := i.fetchSymvers(ctx, sourceDir); err != nil {
		return err
	}

	if !cfg.NoMake {
		if err := i.modulesPrepare(ctx, sourceDir); err != nil {
			return err
		}
	}

	if _, err := os.Stat(i.ncursesHeader); err != nil {
		log.G(ctx).Warn("ncurses development headers not found; 'make menuconfig' requires libncurses5-dev")
	}

	if cfg.Delete {
		if err := i.remove(ctx, tarball); err != nil {
			return fmt.Errorf("could not delete archive: %w", err)
		}
	}

	return nil
}

// fetchSource downloads the kernel source archive keyed by the resolved
// commit and unpacks it into sourceDir.
func (i *Installer) fetchSource(ctx context.Context, tarball, sourceDir string) error {
	repo, err := ghrepo.FromFullName(config.KernelRepo)
	if err != nil {
		return err
	}

	url := ghrepo.SHAArchive(repo, i.ref.GitHash)

	if _, err := os.Stat(tarball); err == nil {
		log.G(ctx).WithField("file", tarball).Info("archive already downloaded")
	} else if err := i.download(ctx, url, tarball); err != nil {
		return fmt.Errorf("could not download kernel source: %w", err)
	}

	if config.G(ctx).DryRun {
		log.G(ctx).WithField("dir", sourceDir).Info("dry-run: unpack archive")
		return nil
	}

	log.G(ctx).WithField("dir", sourceDir).Info("unpacking")

	// GitHub archives wrap the tree in a NAME-SHA directory.
	if err := archive.Unarchive(tarball, sourceDir, archive.StripComponents(1)); err != nil {
		return fmt.Errorf("could not unpack kernel source: %w", err)
	}

	return nil
}

// linkModules recreates the running kernel's module build and source
// symlinks.  Writing under /lib/modules requires elevated privilege, so the
// links are created through sudo.
func (i *Installer) linkModules(ctx context.Context, target string) error {
	modulesDir := i.modulesDir
	if modulesDir == "" {
		release, err := board.KernelRelease()
		if err != nil {
			return fmt.Errorf("could not determine the running kernel release: %w", err)
		}

		modulesDir = filepath.Join("/lib/modules", release)
	}

	for _, name := range []string{"build", "source"} {
		link := filepath.Join(modulesDir, name)
		if err := i.run(ctx, "sudo", "ln", "-nsf", target, link); err != nil {
			return fmt.Errorf("could not link %s: %w", link, err)
		}
	}

	return nil
}

// symlink recreates link pointing at target, removing any stale link first.
func (i *Installer) symlink(ctx context.Context, target, link string) error {
	if config.G(ctx).DryRun {
		log.G(ctx).WithFields(map[string]interface{}{
			"link":   link,
			"target": target,
		}).Info("dry-run: symlink")
		return nil
	}

	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("could not remove %s: %w", link, err)
		}
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("could not create symlink %s: %w", link, err)
	}

	return nil
}

func (i *Installer) writeFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	if config.G(ctx).DryRun {
		log.G(ctx).WithField("file", path).Info("dry-run: write")
		return nil
	}

	return os.WriteFile(path, data, mode)
}

func (i *Installer) remove(ctx context.Context, path string) error {
	if config.G(ctx).DryRun {
		log.G(ctx).WithField("file", path).Info("dry-run: remove")
		return nil
	}

	return os.Remove(path)
}

// run executes an external command with the process IO streams attached, or
// only logs its command line in dry-run mode.
func (i *Installer) run(ctx context.Context, bin string, args ...string) error {
	path, err := safeexec.LookPath(bin)
	if err != nil {
		if config.G(ctx).DryRun {
			path = bin
		} else {
			return fmt.Errorf("required tool not found: %w", err)
		}
	}

	streams := iostreams.G(ctx)

	process, err := exec.NewProcess(path, args,
		exec.WithStdout(streams.Out),
		exec.WithStderr(streams.ErrOut),
	)
	if err != nil {
		return err
	}

	if config.G(ctx).DryRun {
		log.G(ctx).WithField("cmd", process.Cmdline()).Info("dry-run: exec")
		return nil
	}

	log.G(ctx).WithField("cmd", process.Cmdline()).Debug("exec")

	return process.StartAndWait(ctx)
}
