// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"os"

	"rpisource.sh/internal/cli/rpisource"
)

func main() {
	os.Exit(rpisource.Main(os.Args[1:]))
}
