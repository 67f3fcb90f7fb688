// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-github/v32/github"

	"rpisource.sh/internal/ghrepo"
)

const (
	upstreamSHA = "156b3d8a9e3ad18bc5aae395e6d4ff9cbe9868fc"
	staleSHA    = "adcb4ee7a75eb411ff6ad34b6b25d2e237249444"
)

// testChecker returns a Checker whose GitHub client talks to a stub API
// serving upstreamSHA as the tip of the default branch.
func testChecker(t *testing.T, tagFile string) *Checker {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/RPi-Distro/rpi-source/commits/"+DefaultBranch, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.github.v3.sha")
		w.Write([]byte(upstreamSHA))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base

	checker, err := NewChecker(
		ghrepo.New("RPi-Distro", "rpi-source"),
		tagFile,
		srv.Client(),
		WithGitHubClient(client),
	)
	if err != nil {
		t.Fatal(err)
	}

	return checker
}

func TestLatestRefMemoized(t *testing.T) {
	checker := testChecker(t, filepath.Join(t.TempDir(), ".rpi-source"))

	ref, err := checker.LatestRef(context.Background())
	if err != nil {
		t.Fatalf("LatestRef: %v", err)
	}

	if ref != upstreamSHA {
		t.Errorf("LatestRef = %q, want %q", ref, upstreamSHA)
	}

	// A second call must serve the memoized value.
	checker.client = nil

	ref, err = checker.LatestRef(context.Background())
	if err != nil {
		t.Fatalf("LatestRef (memoized): %v", err)
	}

	if ref != upstreamSHA {
		t.Errorf("LatestRef (memoized) = %q, want %q", ref, upstreamSHA)
	}
}

func TestStaleWhenTagFileAbsent(t *testing.T) {
	checker := testChecker(t, filepath.Join(t.TempDir(), ".rpi-source"))

	stale, ref, err := checker.Stale(context.Background())
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}

	if !stale {
		t.Error("Stale = false with no tag file, want true")
	}

	if ref != upstreamSHA {
		t.Errorf("Stale ref = %q, want %q", ref, upstreamSHA)
	}
}

func TestStaleWhenTagDiffers(t *testing.T) {
	tagFile := filepath.Join(t.TempDir(), ".rpi-source")
	if err := os.WriteFile(tagFile, []byte(staleSHA+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	checker := testChecker(t, tagFile)

	stale, _, err := checker.Stale(context.Background())
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}

	if !stale {
		t.Error("Stale = false with a differing tag, want true")
	}
}

func TestCurrentWhenTagMatches(t *testing.T) {
	tagFile := filepath.Join(t.TempDir(), ".rpi-source")
	if err := os.WriteFile(tagFile, []byte(upstreamSHA+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	checker := testChecker(t, tagFile)

	stale, _, err := checker.Stale(context.Background())
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}

	if stale {
		t.Error("Stale = true with a matching tag, want false")
	}
}

func TestWriteTag(t *testing.T) {
	tagFile := filepath.Join(t.TempDir(), ".rpi-source")
	checker := testChecker(t, tagFile)

	if err := checker.WriteTag(upstreamSHA); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	tag, err := checker.Tag()
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}

	if tag != upstreamSHA {
		t.Errorf("Tag = %q, want %q", tag, upstreamSHA)
	}

	stale, _, err := checker.Stale(context.Background())
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}

	if stale {
		t.Error("Stale = true after WriteTag with the upstream reference")
	}
}

func TestLatestRefFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base

	checker, err := NewChecker(
		ghrepo.New("RPi-Distro", "rpi-source"),
		filepath.Join(t.TempDir(), ".rpi-source"),
		srv.Client(),
		WithGitHubClient(client),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := checker.LatestRef(context.Background()); err == nil {
		t.Error("LatestRef should surface the fetch failure")
	}
}
