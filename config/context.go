// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package config

import (
	"context"
)

// G is an alias for FromContext.
var G = FromContext

// contextKey is used to retrieve the configuration from the context.
type contextKey struct{}

// WithConfig returns a new context carrying the resolved run configuration.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the configuration stored in the context, or a zero
// configuration when none has been set.
func FromContext(ctx context.Context) *Config {
	c, ok := ctx.Value(contextKey{}).(*Config)
	if !ok || c == nil {
		return &Config{Processor: -1}
	}

	return c
}
