// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unarchive takes an input src file and determines (based on its extension)
// how to extract it into dst.
func Unarchive(src, dst string, opts ...UnarchiveOption) error {
	switch {
	case strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"):
		return UntarGz(src, dst, opts...)
	}

	return fmt.Errorf("unrecognized extension: %s", filepath.Base(src))
}

// UntarGz unarchives a tarball which has been gzip compressed.
func UntarGz(src, dst string, opts ...UnarchiveOption) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}

	defer f.Close()

	gzipReader, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("could not open gzip reader: %w", err)
	}

	return Untar(gzipReader, dst, opts...)
}

// Untar unarchives a tarball read from src into the directory dst.  Regular
// files, directories, symbolic links and hard links are materialized; other
// entry types are skipped.
func Untar(src io.Reader, dst string, opts ...UnarchiveOption) error {
	uc := &UnarchiveOptions{}
	for _, opt := range opts {
		if err := opt(uc); err != nil {
			return err
		}
	}

	tr := tar.NewReader(src)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		path, ok := uc.relativePath(header.Name)
		if !ok {
			continue
		}

		path = filepath.Join(dst, path)
		info := header.FileInfo()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, info.Mode()); err != nil {
				return fmt.Errorf("could not create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("could not create directory: %w", err)
			}

			newFile, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
			if err != nil {
				return fmt.Errorf("could not create file: %w", err)
			}

			if _, err := io.Copy(newFile, tr); err != nil {
				newFile.Close()
				return fmt.Errorf("could not copy file: %w", err)
			}

			newFile.Close()

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("could not create directory: %w", err)
			}

			// The link may be recreated when extracting over an existing tree.
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("could not remove existing link: %w", err)
			}

			if err := os.Symlink(header.Linkname, path); err != nil {
				return fmt.Errorf("could not create symlink: %w", err)
			}

		case tar.TypeLink:
			target, ok := uc.relativePath(header.Linkname)
			if !ok {
				continue
			}

			if err := os.Link(filepath.Join(dst, target), path); err != nil {
				return fmt.Errorf("could not create hard link: %w", err)
			}
		}

		// Change access time and modification time if possible (error ignored)
		_ = os.Chtimes(path, header.AccessTime, header.ModTime)
	}

	return nil
}
