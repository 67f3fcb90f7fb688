// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package update keeps the installed binary in sync with the upstream
// repository.  A dotfile under the user's home directory records the last
// upstream commit this installation was synchronized with; when it falls
// behind the tip of the default branch the binary replaces itself with the
// latest release and re-executes.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/go-github/v32/github"
	"golang.org/x/sys/unix"

	"rpisource.sh/internal/ghrepo"
	"rpisource.sh/log"
)

// DefaultBranch is the reference the update check compares against.
const DefaultBranch = "master"

// Checker compares the local update tag against the upstream repository.
type Checker struct {
	repo    ghrepo.Interface
	tagFile string
	client  *github.Client
	http    *http.Client

	// latest memoizes the fetched upstream reference for the lifetime of the
	// checker.
	latest string
}

type CheckerOption func(*Checker) error

// WithGitHubClient overrides the GitHub API client, e.g. to point it at a
// test server.
func WithGitHubClient(client *github.Client) CheckerOption {
	return func(c *Checker) error {
		c.client = client
		return nil
	}
}

// NewChecker returns a Checker for the given repository whose state is
// persisted in tagFile.
func NewChecker(repo ghrepo.Interface, tagFile string, httpClient *http.Client, opts ...CheckerOption) (*Checker, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Checker{
		repo:    repo,
		tagFile: tagFile,
		client:  github.NewClient(httpClient),
		http:    httpClient,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// LatestRef returns the commit SHA at the tip of the upstream default
// branch.  The value is fetched once and memoized.
func (c *Checker) LatestRef(ctx context.Context) (string, error) {
	if c.latest != "" {
		return c.latest, nil
	}

	sha, _, err := c.client.Repositories.GetCommitSHA1(
		ctx,
		c.repo.RepoOwner(),
		c.repo.RepoName(),
		DefaultBranch,
		"",
	)
	if err != nil {
		return "", fmt.Errorf("could not fetch latest reference of %s: %w", ghrepo.FullName(c.repo), err)
	}

	c.latest = strings.TrimSpace(sha)

	return c.latest, nil
}

// Tag returns the locally recorded reference, or the empty string when no
// tag file exists yet.
func (c *Checker) Tag() (string, error) {
	raw, err := os.ReadFile(c.tagFile)
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(raw)), nil
}

// WriteTag records the given reference as the synchronized state.
func (c *Checker) WriteTag(ref string) error {
	return os.WriteFile(c.tagFile, []byte(ref+"\n"), 0o644)
}

// Stale reports whether the installation is behind upstream, along with the
// upstream reference it was compared against.
func (c *Checker) Stale(ctx context.Context) (bool, string, error) {
	latest, err := c.LatestRef(ctx)
	if err != nil {
		return false, "", err
	}

	tag, err := c.Tag()
	if err != nil {
		return false, "", err
	}

	return tag != latest, latest, nil
}

// Update replaces the running executable with the latest published release
// for this platform, records the given reference, and re-executes the new
// binary with the original arguments.  On success it never returns.
func (c *Checker) Update(ctx context.Context, ref string, argv []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate the running executable: %w", err)
	}

	release, _, err := c.client.Repositories.GetLatestRelease(
		ctx,
		c.repo.RepoOwner(),
		c.repo.RepoName(),
	)
	if err != nil {
		return fmt.Errorf("could not fetch the latest release of %s: %w", ghrepo.FullName(c.repo), err)
	}

	wanted := fmt.Sprintf("rpi-source_%s_%s", runtime.GOOS, runtime.GOARCH)

	var assetURL string
	for _, asset := range release.Assets {
		if asset.GetName() == wanted {
			assetURL = asset.GetBrowserDownloadURL()
			break
		}
	}

	if assetURL == "" {
		return fmt.Errorf("release %s carries no asset named %s", release.GetTagName(), wanted)
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"release": release.GetTagName(),
		"asset":   wanted,
	}).Info("updating")

	if err := c.replaceExecutable(ctx, self, assetURL); err != nil {
		return err
	}

	if err := c.WriteTag(ref); err != nil {
		return fmt.Errorf("could not write update tag: %w", err)
	}

	log.G(ctx).Info("restarting with the updated binary")

	// Terminal for this process instance.
	return unix.Exec(self, append([]string{self}, argv...), os.Environ())
}

// replaceExecutable downloads url next to path and atomically renames it
// into place.
func (c *Checker) replaceExecutable(ctx context.Context, path, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
