// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package board

import (
	"golang.org/x/sys/unix"
)

// Machine returns the machine hardware name of the running system, the
// equivalent of uname -m.
func Machine() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}

	return utsString(uts.Machine), nil
}

// KernelRelease returns the release string of the running kernel, the
// equivalent of uname -r.
func KernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}

	return utsString(uts.Release), nil
}

func utsString(f [65]byte) string {
	n := 0
	for ; n < len(f) && f[n] != 0; n++ {
	}

	return string(f[:n])
}
