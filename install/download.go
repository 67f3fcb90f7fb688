// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"rpisource.sh/config"
	"rpisource.sh/log"
)

// download fetches url into path.  In dry-run mode the transfer is only
// logged.
func (i *Installer) download(ctx context.Context, url, path string) error {
	if config.G(ctx).DryRun {
		log.G(ctx).WithFields(map[string]interface{}{
			"url":  url,
			"file": path,
		}).Info("dry-run: download")
		return nil
	}

	log.G(ctx).WithField("url", url).Info("downloading")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"file": filepath.Base(path),
		"size": humanize.Bytes(uint64(written)),
	}).Info("downloaded")

	return nil
}

// fetchSymvers places the resolved symbol-version file into the source tree
// and keeps a backup copy beside it.
func (i *Installer) fetchSymvers(ctx context.Context, sourceDir string) error {
	symvers := filepath.Join(sourceDir, symversFile)

	if err := i.download(ctx, i.ref.SymversURL, symvers); err != nil {
		return fmt.Errorf("could not fetch symbol versions: %w", err)
	}

	if err := i.copyFile(ctx, symvers, symvers+".backup"); err != nil {
		return fmt.Errorf("could not back up symbol versions: %w", err)
	}

	return nil
}

func (i *Installer) copyFile(ctx context.Context, src, dst string) error {
	if config.G(ctx).DryRun {
		log.G(ctx).WithFields(map[string]interface{}{
			"src": src,
			"dst": dst,
		}).Info("dry-run: copy")
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
