// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package firmware

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rpisource.sh/board"
	"rpisource.sh/config"
	"rpisource.sh/internal/ghrepo"
)

const (
	testFirmwareRev = "c1b1e2a8256ba9a2ae1a1cc1d6d0f6015b7d73f1"
	testKernelHash  = "1e185d64a7d4df122076f4f77c37abe8a3bdc0a8"
)

func TestFirmwareHashFromChangelog(t *testing.T) {
	changelog := strings.Join([]string{
		"raspberrypi-firmware (1.20210303-1) buster; urgency=medium",
		"",
		"  * firmware as of 156b3d8a9e3ad18bc5aae395e6d4ff9cbe9868fc",
		"",
		" -- maintainer  Wed, 03 Mar 2021 14:20:15 +0000",
		"",
		"raspberrypi-firmware (1.20210201-1) buster; urgency=medium",
		"",
		"  * firmware as of adcb4ee7a75eb411ff6ad34b6b25d2e237249444",
		"",
	}, "\n")

	hash, err := firmwareHashFromChangelog(strings.NewReader(changelog))
	if err != nil {
		t.Fatalf("firmwareHashFromChangelog: %v", err)
	}

	// The topmost entry is the most recent and must win.
	if hash != "156b3d8a9e3ad18bc5aae395e6d4ff9cbe9868fc" {
		t.Errorf("firmwareHashFromChangelog = %q, want the first entry", hash)
	}
}

func TestFirmwareHashFromChangelogMissing(t *testing.T) {
	if _, err := firmwareHashFromChangelog(strings.NewReader("no firmware entries here\n")); err == nil {
		t.Error("firmwareHashFromChangelog should fail on a changelog without entries")
	}
}

func TestResolveNoMetadata(t *testing.T) {
	dir := t.TempDir()

	r, err := NewResolver(
		ghrepo.New("raspberrypi", "rpi-firmware"),
		board.BCM2837,
		nil,
		WithRevisionFile(filepath.Join(dir, "absent-revision")),
		WithChangelogFile(filepath.Join(dir, "absent-changelog")),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(testContext(t)); err == nil {
		t.Error("Resolve should fail when no firmware metadata artifact exists")
	}
}

func TestResolveRpiUpdateMethod(t *testing.T) {
	dir := t.TempDir()

	revisionFile := filepath.Join(dir, ".firmware_revision")
	if err := os.WriteFile(revisionFile, []byte(testFirmwareRev+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/" + testFirmwareRev + "/git_hash":
			w.Write([]byte(testKernelHash + "\n"))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r, err := NewResolver(
		ghrepo.New("raspberrypi", "rpi-firmware"),
		board.BCM2711,
		srv.Client(),
		WithRevisionFile(revisionFile),
		WithChangelogFile(filepath.Join(dir, "absent-changelog")),
		WithProcConfigFile(filepath.Join(dir, "absent-config")),
		WithRawBase(srv.URL),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := r.Resolve(testContext(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if ref.GitHash != testKernelHash {
		t.Errorf("GitHash = %q, want %q", ref.GitHash, testKernelHash)
	}

	wantSymvers := srv.URL + "/" + testFirmwareRev + "/Module7l.symvers"
	if ref.SymversURL != wantSymvers {
		t.Errorf("SymversURL = %q, want %q", ref.SymversURL, wantSymvers)
	}

	// No /proc/config.gz was readable, so the config blob stays empty.
	if len(ref.Config) != 0 {
		t.Errorf("Config = %d bytes, want none", len(ref.Config))
	}
}

func TestResolveRpiUpdateReadsRunningConfig(t *testing.T) {
	dir := t.TempDir()

	revisionFile := filepath.Join(dir, ".firmware_revision")
	if err := os.WriteFile(revisionFile, []byte(testFirmwareRev), 0o644); err != nil {
		t.Fatal(err)
	}

	const kernelConfig = "CONFIG_LOCALVERSION=\"-v7\"\nCONFIG_ARM=y\n"
	procConfig := filepath.Join(dir, "config.gz")
	writeGzip(t, procConfig, kernelConfig)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(testKernelHash))
	}))
	defer srv.Close()

	r, err := NewResolver(
		ghrepo.New("raspberrypi", "rpi-firmware"),
		board.BCM2837,
		srv.Client(),
		WithRevisionFile(revisionFile),
		WithProcConfigFile(procConfig),
		WithRawBase(srv.URL),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := r.Resolve(testContext(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if string(ref.Config) != kernelConfig {
		t.Errorf("Config = %q, want the decompressed running configuration", ref.Config)
	}
}

func TestResolveDebianMethod(t *testing.T) {
	dir := t.TempDir()

	changelog := strings.Join([]string{
		"raspberrypi-kernel (1.20210303-1) buster; urgency=medium",
		"",
		"  * firmware as of " + testFirmwareRev,
		"",
	}, "\n")

	changelogFile := filepath.Join(dir, "changelog.Debian.gz")
	writeGzip(t, changelogFile, changelog)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/"+testFirmwareRev+"/git_hash" {
			w.Write([]byte(testKernelHash))
			return
		}
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r, err := NewResolver(
		ghrepo.New("example", "ignored-for-debian-method"),
		board.BCM2835,
		srv.Client(),
		WithRevisionFile(filepath.Join(dir, "absent-revision")),
		WithChangelogFile(changelogFile),
		WithProcConfigFile(filepath.Join(dir, "absent-config")),
		WithRawBase(srv.URL),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := r.Resolve(testContext(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if ref.GitHash != testKernelHash {
		t.Errorf("GitHash = %q, want %q", ref.GitHash, testKernelHash)
	}

	wantSymvers := srv.URL + "/" + testFirmwareRev + "/Module.symvers"
	if ref.SymversURL != wantSymvers {
		t.Errorf("SymversURL = %q, want %q", ref.SymversURL, wantSymvers)
	}
}

func TestResolveEmptyGitHash(t *testing.T) {
	dir := t.TempDir()

	revisionFile := filepath.Join(dir, ".firmware_revision")
	if err := os.WriteFile(revisionFile, []byte(testFirmwareRev), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("\n"))
	}))
	defer srv.Close()

	r, err := NewResolver(
		ghrepo.New("raspberrypi", "rpi-firmware"),
		board.BCM2837,
		srv.Client(),
		WithRevisionFile(revisionFile),
		WithProcConfigFile(filepath.Join(dir, "absent-config")),
		WithRawBase(srv.URL),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(testContext(t)); err == nil {
		t.Error("Resolve should fail when the firmware maps to an empty kernel commit")
	}
}

func TestContentURL(t *testing.T) {
	r, err := NewResolver(ghrepo.New("raspberrypi", "rpi-firmware"), board.BCM2835, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := r.contentURL(r.repo, "abc123", "git_hash")
	want := "https://raw.githubusercontent.com/raspberrypi/rpi-firmware/abc123/git_hash"
	if got != want {
		t.Errorf("contentURL = %q, want %q", got, want)
	}
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}

	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	return config.WithConfig(context.Background(), &config.Config{Processor: -1})
}
