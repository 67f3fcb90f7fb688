// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package firmware resolves the identity of the kernel source tree matching
// the firmware installed on the board.  The firmware revision is discovered
// through one of two mutually exclusive delivery mechanisms: the
// rpi-update marker file or the changelog of the Debian-packaged kernel.
package firmware

// KernelRef is the resolved identity of a kernel source tree.
type KernelRef struct {
	// GitHash is the commit of the upstream kernel repository the firmware
	// was built from.  Always non-empty once resolution succeeds.
	GitHash string

	// SymversURL locates the symbol-version file matching the firmware and
	// the board's SoC family.  Always non-empty once resolution succeeds.
	SymversURL string

	// Config holds the running kernel's configuration when it could be read,
	// or nil, in which case the installer falls back to the family's default
	// configuration.
	Config []byte
}
