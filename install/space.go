// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package install

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"

	"rpisource.sh/config"
	"rpisource.sh/log"
)

// checkFreeSpace verifies the filesystem holding path has room for an
// unpacked kernel tree.  An inconclusive probe is advisory; too little space
// is fatal.
func checkFreeSpace(ctx context.Context, path string) error {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		log.G(ctx).WithError(err).Warnf("could not determine free space at %s", path)
		return nil
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"path": path,
		"free": humanize.Bytes(usage.Free),
	}).Debug("checked free space")

	if usage.Free < config.MinFreeSpace {
		return fmt.Errorf(
			"not enough space at %s: %s free, %s required (use --skip-space to override)",
			path,
			humanize.Bytes(usage.Free),
			humanize.Bytes(uint64(config.MinFreeSpace)),
		)
	}

	return nil
}
