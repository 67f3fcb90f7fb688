// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	// DefaultFirmwareRepo is the repository the rpi-update firmware
	// distribution publishes to.
	DefaultFirmwareRepo = "raspberrypi/rpi-firmware"

	// UpstreamFirmwareRepo is the fixed repository consulted by the Debian
	// packaging resolution method.
	UpstreamFirmwareRepo = "raspberrypi/firmware"

	// KernelRepo hosts the kernel source trees that the resolved commit
	// hashes point into.
	KernelRepo = "raspberrypi/linux"

	// SelfRepo hosts this tool; the self-update check compares against its
	// latest commit.
	SelfRepo = "RPi-Distro/rpi-source"

	// RepoURIEnvVar overrides DefaultFirmwareRepo when set.
	RepoURIEnvVar = "REPO_URI"

	// FirmwareRevisionFile marks an rpi-update managed firmware installation
	// and holds the installed firmware revision.
	FirmwareRevisionFile = "/boot/.firmware_revision"

	// KernelChangelogFile is the compressed changelog of the Debian-packaged
	// kernel, the fallback source of the firmware revision.
	KernelChangelogFile = "/usr/share/doc/raspberrypi-kernel/changelog.Debian.gz"

	// ProcConfigFile is the running kernel's compiled-in configuration.
	ProcConfigFile = "/proc/config.gz"

	// DTRevisionFile holds the board revision code as a big-endian 32-bit
	// integer on device-tree systems.
	DTRevisionFile = "/proc/device-tree/system/linux,revision"

	// CPUInfoFile is parsed for a Revision: line when DTRevisionFile is
	// absent.
	CPUInfoFile = "/proc/cpuinfo"

	// MinFreeSpace is the minimum number of bytes which must be available at
	// the destination before a source tree is unpacked.
	MinFreeSpace = 900 * 1024 * 1024

	tagFileName = ".rpi-source"
)

// HomeDir returns the current user's home directory, honouring $HOME.
func HomeDir() (string, error) {
	return homedir.Dir()
}

// TagFile returns the path of the dotfile holding the last-synchronized
// upstream commit reference.
func TagFile() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, tagFileName), nil
}

// FirmwareRepo returns the firmware repository identifier to use by default,
// honouring the environment override.
func FirmwareRepo() string {
	if uri := os.Getenv(RepoURIEnvVar); uri != "" {
		return uri
	}

	return DefaultFirmwareRepo
}
