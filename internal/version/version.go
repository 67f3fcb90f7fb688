// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package version

import (
	"fmt"
	"runtime"
)

var (
	version   = "No version provided"
	commit    = "No commit provided"
	buildTime = "No build timestamp provided"
	agentName = "rpi-source"
)

// Version returns rpi-source's version string.
func Version() string {
	return version
}

// Commit returns the Git commit SHA the binary was built from.
func Commit() string {
	return commit
}

// BuildTime returns the time at which the binary was built.
func BuildTime() string {
	return buildTime
}

// String returns all version information.
func String() string {
	return fmt.Sprintf("%s (%s) %s %s",
		version,
		commit,
		runtime.Version(),
		buildTime,
	)
}

// UserAgent returns the agent name and version to be used when making HTTP
// requests.
func UserAgent() string {
	if version != "No version provided" {
		return fmt.Sprintf("%s/%s", agentName, version)
	}

	return agentName
}
