// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package firmware

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"

	"rpisource.sh/board"
	"rpisource.sh/config"
	"rpisource.sh/internal/ghrepo"
	"rpisource.sh/log"
)

// gitHashFile names the resource within the firmware repository tree which
// records the kernel source commit the firmware was built from.
const gitHashFile = "git_hash"

var changelogFirmwareRE = regexp.MustCompile(`firmware as of ([0-9a-fA-F]+)`)

// Resolver derives a KernelRef from locally observable firmware metadata.
type Resolver struct {
	repo   ghrepo.Interface
	proc   board.ProcessorType
	client *http.Client

	revisionFile  string
	changelogFile string
	procConfig    string
	rawBase       string
}

type ResolverOption func(*Resolver) error

// WithRevisionFile overrides the rpi-update firmware revision marker path.
func WithRevisionFile(path string) ResolverOption {
	return func(r *Resolver) error {
		r.revisionFile = path
		return nil
	}
}

// WithChangelogFile overrides the Debian kernel changelog path.
func WithChangelogFile(path string) ResolverOption {
	return func(r *Resolver) error {
		r.changelogFile = path
		return nil
	}
}

// WithProcConfigFile overrides the compiled-in kernel configuration path.
func WithProcConfigFile(path string) ResolverOption {
	return func(r *Resolver) error {
		r.procConfig = path
		return nil
	}
}

// WithRawBase overrides the base URL raw repository content is fetched from.
// The repository tree layout below the base is unchanged.
func WithRawBase(base string) ResolverOption {
	return func(r *Resolver) error {
		r.rawBase = strings.TrimSuffix(base, "/")
		return nil
	}
}

// NewResolver returns a Resolver for the given firmware repository and SoC
// family.
func NewResolver(repo ghrepo.Interface, proc board.ProcessorType, client *http.Client, opts ...ResolverOption) (*Resolver, error) {
	if client == nil {
		client = http.DefaultClient
	}

	r := &Resolver{
		repo:          repo,
		proc:          proc,
		client:        client,
		revisionFile:  config.FirmwareRevisionFile,
		changelogFile: config.KernelChangelogFile,
		procConfig:    config.ProcConfigFile,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Resolve determines the kernel source identity for the board.  Exactly one
// of the two resolution methods runs, selected by which firmware metadata
// artifact exists on disk.
func (r *Resolver) Resolve(ctx context.Context) (*KernelRef, error) {
	if _, err := os.Stat(r.revisionFile); err == nil {
		return r.resolveRpiUpdate(ctx)
	}

	if _, err := os.Stat(r.changelogFile); err == nil {
		return r.resolveDebian(ctx)
	}

	return nil, fmt.Errorf(
		"cannot determine the firmware revision: neither %s nor %s exists",
		r.revisionFile, r.changelogFile,
	)
}

// resolveRpiUpdate handles boards whose firmware is managed by rpi-update:
// the marker file holds the firmware revision, which keys resources in the
// configured firmware repository.
func (r *Resolver) resolveRpiUpdate(ctx context.Context) (*KernelRef, error) {
	raw, err := os.ReadFile(r.revisionFile)
	if err != nil {
		return nil, fmt.Errorf("could not read firmware revision: %w", err)
	}

	rev := strings.TrimSpace(string(raw))
	if rev == "" {
		return nil, fmt.Errorf("empty firmware revision in %s", r.revisionFile)
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"method":   "rpi-update",
		"revision": rev,
		"repo":     ghrepo.FullName(r.repo),
	}).Info("resolving kernel source")

	ref, err := r.refForRevision(ctx, r.repo, rev)
	if err != nil {
		return nil, err
	}

	if !config.G(ctx).DefaultConfig {
		ref.Config = r.runningConfig(ctx)
	}

	return ref, nil
}

// resolveDebian handles boards running the Debian-packaged kernel: the
// changelog records the firmware revision each kernel version was built
// against, and resources are keyed into the fixed upstream firmware
// repository.
func (r *Resolver) resolveDebian(ctx context.Context) (*KernelRef, error) {
	f, err := os.Open(r.changelogFile)
	if err != nil {
		return nil, fmt.Errorf("could not open changelog: %w", err)
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not decompress changelog: %w", err)
	}

	defer gz.Close()

	rev, err := firmwareHashFromChangelog(gz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.changelogFile, err)
	}

	repo, err := ghrepo.FromFullName(config.UpstreamFirmwareRepo)
	if err != nil {
		return nil, err
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"method":   "debian",
		"revision": rev,
		"repo":     ghrepo.FullName(repo),
	}).Info("resolving kernel source")

	ref, err := r.refForRevision(ctx, repo, rev)
	if err != nil {
		return nil, err
	}

	if !config.G(ctx).DefaultConfig {
		ref.Config = r.runningConfig(ctx)
	}

	return ref, nil
}

// refForRevision derives the kernel commit and symbol-version URL for a
// firmware revision within the given repository.
func (r *Resolver) refForRevision(ctx context.Context, repo ghrepo.Interface, rev string) (*KernelRef, error) {
	hash, err := r.fetchString(ctx, r.contentURL(repo, rev, gitHashFile))
	if err != nil {
		return nil, fmt.Errorf("could not fetch kernel commit for firmware %s: %w", rev, err)
	}

	if hash == "" {
		return nil, fmt.Errorf("firmware %s resolves to an empty kernel commit", rev)
	}

	suffix, err := r.proc.SymversSuffix()
	if err != nil {
		return nil, err
	}

	return &KernelRef{
		GitHash:    hash,
		SymversURL: r.contentURL(repo, rev, fmt.Sprintf("Module%s.symvers", suffix)),
	}, nil
}

// runningConfig reads and decompresses the running kernel's compiled-in
// configuration.  Absence is not an error: the installer then generates a
// default configuration instead.
func (r *Resolver) runningConfig(ctx context.Context) []byte {
	f, err := os.Open(r.procConfig)
	if err != nil {
		log.G(ctx).WithField("file", r.procConfig).Warn("no compiled-in kernel configuration, will use the default")
		return nil
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		log.G(ctx).WithError(err).Warn("could not decompress kernel configuration, will use the default")
		return nil
	}

	defer gz.Close()

	blob, err := io.ReadAll(gz)
	if err != nil {
		log.G(ctx).WithError(err).Warn("could not read kernel configuration, will use the default")
		return nil
	}

	return blob
}

func (r *Resolver) contentURL(repo ghrepo.Interface, ref, path string) string {
	if r.rawBase != "" {
		return fmt.Sprintf("%s/%s/%s", r.rawBase, ref, path)
	}

	return ghrepo.RawContentURL(repo, ref, path)
}

func (r *Resolver) fetchString(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	log.G(ctx).WithField("url", url).Trace("GET")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// firmwareHashFromChangelog scans a decompressed Debian changelog top-down
// and returns the firmware hash of the first, i.e. most recent, entry.
func firmwareHashFromChangelog(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if m := changelogFirmwareRE.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("no firmware revision entry found in changelog")
}
