// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package archive

import (
	"path/filepath"
	"strings"
)

type UnarchiveOptions struct {
	stripComponents int
}

type UnarchiveOption func(uo *UnarchiveOptions) error

// StripComponents drops the given number of leading path components from
// every entry when extracting, mirroring tar's --strip-components.
func StripComponents(sc int) UnarchiveOption {
	return func(uo *UnarchiveOptions) error {
		if sc < 0 {
			sc = 0
		}

		uo.stripComponents = sc
		return nil
	}
}

// relativePath applies the strip-components setting to an entry name and
// reports whether anything remains of it.
func (uo *UnarchiveOptions) relativePath(name string) (string, bool) {
	if uo.stripComponents == 0 {
		return name, true
	}

	parts := strings.Split(name, string(filepath.Separator))
	if len(parts) <= uo.stripComponents {
		return "", false
	}

	return strings.Join(parts[uo.stripComponents:], string(filepath.Separator)), true
}
