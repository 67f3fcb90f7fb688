// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package config

// Config is the fully resolved run configuration.  It is constructed exactly
// once, after command-line flags and the environment have been read, and is
// treated as read-only for the remainder of the run.
type Config struct {
	// Dest is the absolute path of the directory the kernel source tree is
	// installed into.
	Dest string

	// RepoURI identifies the firmware repository in OWNER/NAME form.  Only
	// consulted by the rpi-update resolution method; the Debian packaging
	// method always uses the fixed upstream firmware repository.
	RepoURI string

	// Processor overrides board detection when in the range 0-3.  A negative
	// value means auto-detect.
	Processor int

	// DefaultConfig forces generating the processor family's default build
	// configuration instead of reusing the running kernel's.
	DefaultConfig bool

	// NoMake skips the modules_prepare build step.
	NoMake bool

	// Delete removes the downloaded source archive after a successful unpack.
	Delete bool

	// DryRun logs every mutating step and subprocess invocation instead of
	// performing it.
	DryRun bool

	SkipSpace  bool
	SkipUpdate bool
	TagUpdate  bool
}
