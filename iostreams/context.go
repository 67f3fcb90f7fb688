// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package iostreams

import (
	"context"
)

var (
	// G is an alias for FromContext.
	G = FromContext

	// IO is the system IO stream.
	IO = System()
)

// contextKey is used to retrieve the IO streams from the context.
type contextKey struct{}

// WithIOStreams returns a new context with the provided IO streams.
func WithIOStreams(ctx context.Context, streams *IOStreams) context.Context {
	return context.WithValue(ctx, contextKey{}, streams)
}

// FromContext returns the IO streams stored in the context, or the system
// streams when none have been set.
func FromContext(ctx context.Context) *IOStreams {
	if ctx == nil {
		return IO
	}

	s, ok := ctx.Value(contextKey{}).(*IOStreams)
	if !ok || s == nil {
		return IO
	}

	return s
}
