// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package ghrepo

import (
	"fmt"
	"strings"
)

// Interface describes an object that represents a GitHub repository.
type Interface interface {
	RepoName() string
	RepoOwner() string
	RepoHost() string
}

// New instantiates a GitHub repository from owner and name arguments.
func New(owner, repo string) Interface {
	return NewWithHost(owner, repo, "github.com")
}

// NewWithHost is like New with an explicit host name.
func NewWithHost(owner, repo, hostname string) Interface {
	return &ghRepo{
		owner:    owner,
		name:     repo,
		hostname: normalizeHostname(hostname),
	}
}

// FromFullName extracts the GitHub repository information from an
// "OWNER/REPO" string.
func FromFullName(nwo string) (Interface, error) {
	parts := strings.Split(nwo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf(`expected the "OWNER/REPO" format, got %q`, nwo)
	}

	return New(parts[0], parts[1]), nil
}

// FullName serializes a GitHub repository into an "OWNER/REPO" string.
func FullName(r Interface) string {
	return fmt.Sprintf("%s/%s", r.RepoOwner(), r.RepoName())
}

// SHAArchive returns the source archive URL for a given Git SHA.
func SHAArchive(repo Interface, sha string) string {
	return fmt.Sprintf(
		"https://%s/%s/%s/archive/%s.tar.gz",
		repo.RepoHost(),
		repo.RepoOwner(),
		repo.RepoName(),
		sha,
	)
}

// RawContentURL returns the URL of a file within the repository tree at the
// given reference, served as raw content.
func RawContentURL(repo Interface, ref, path string) string {
	return fmt.Sprintf(
		"https://raw.githubusercontent.com/%s/%s/%s/%s",
		repo.RepoOwner(),
		repo.RepoName(),
		ref,
		path,
	)
}

func normalizeHostname(h string) string {
	return strings.ToLower(strings.TrimPrefix(h, "www."))
}

type ghRepo struct {
	owner    string
	name     string
	hostname string
}

func (r ghRepo) RepoOwner() string {
	return r.owner
}

func (r ghRepo) RepoName() string {
	return r.name
}

func (r ghRepo) RepoHost() string {
	return r.hostname
}
