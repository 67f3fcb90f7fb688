// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package httpclient

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/henvic/httpretty"

	"rpisource.sh/internal/version"
	"rpisource.sh/iostreams"
)

// ClientOption represents an argument to NewHTTPClient.
type ClientOption = func(http.RoundTripper) http.RoundTripper

// NewHTTPClient returns an HTTP client which identifies itself with this
// tool's user agent and, when verbose is set, traces every request and
// response onto the error stream.
func NewHTTPClient(io *iostreams.IOStreams, verbose bool) *http.Client {
	var opts []ClientOption

	if verbose {
		opts = append(opts, VerboseLog(io))
	}

	opts = append(opts, AddHeader("User-Agent", version.UserAgent()))

	tr := http.DefaultTransport
	for _, opt := range opts {
		tr = opt(tr)
	}

	return &http.Client{Transport: tr}
}

// AddHeader turns a RoundTripper into one that adds a request header.
func AddHeader(name, value string) ClientOption {
	return func(tr http.RoundTripper) http.RoundTripper {
		return &funcTripper{roundTrip: func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(name) == "" {
				req.Header.Add(name, value)
			}
			return tr.RoundTrip(req)
		}}
	}
}

// VerboseLog enables request/response logging within a RoundTripper.
func VerboseLog(io *iostreams.IOStreams) ClientOption {
	logger := &httpretty.Logger{
		Time:            true,
		TLS:             false,
		Colors:          io.IsStderrTTY(),
		RequestHeader:   true,
		ResponseHeader:  true,
		MaxResponseBody: 10000,
	}
	logger.SetOutput(io.ErrOut)
	logger.SetBodyFilter(func(h http.Header) (skip bool, err error) {
		return !inspectableMIMEType(h.Get("Content-Type")), nil
	})
	return logger.RoundTripper
}

type funcTripper struct {
	roundTrip func(*http.Request) (*http.Response, error)
}

func (tr funcTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return tr.roundTrip(req)
}

var jsonTypeRE = regexp.MustCompile(`[/+]json($|;)`)

func inspectableMIMEType(t string) bool {
	return strings.HasPrefix(t, "text/") || jsonTypeRE.MatchString(t)
}
