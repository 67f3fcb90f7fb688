// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package board

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rpisource.sh/config"
	"rpisource.sh/log"
)

const (
	// newStyleRevisionBit marks a new-style encoding of the board revision
	// code.  Old-style codes carry no processor field and cannot be decoded.
	newStyleRevisionBit = 1 << 23

	processorMask  = 0xf000
	processorShift = 12
)

// Identifier determines the processor family of the running board.
type Identifier struct {
	dtRevisionFile string
	cpuInfoFile    string
	machine        func() (string, error)
}

type IdentifierOption func(*Identifier) error

// WithDTRevisionFile overrides the device-tree revision file read during
// detection.
func WithDTRevisionFile(path string) IdentifierOption {
	return func(id *Identifier) error {
		id.dtRevisionFile = path
		return nil
	}
}

// WithCPUInfoFile overrides the processor info file used as fallback during
// detection.
func WithCPUInfoFile(path string) IdentifierOption {
	return func(id *Identifier) error {
		id.cpuInfoFile = path
		return nil
	}
}

// WithMachineFunc overrides how the machine architecture string is obtained.
func WithMachineFunc(machine func() (string, error)) IdentifierOption {
	return func(id *Identifier) error {
		id.machine = machine
		return nil
	}
}

// NewIdentifier returns an Identifier reading the standard procfs and
// device-tree locations unless configured otherwise.
func NewIdentifier(opts ...IdentifierOption) (*Identifier, error) {
	id := &Identifier{
		dtRevisionFile: config.DTRevisionFile,
		cpuInfoFile:    config.CPUInfoFile,
		machine:        Machine,
	}

	for _, opt := range opts {
		if err := opt(id); err != nil {
			return nil, err
		}
	}

	return id, nil
}

// Detect returns the processor family of the running board.  An explicit
// override in the run configuration short-circuits hardware inspection.
func (id *Identifier) Detect(ctx context.Context) (ProcessorType, error) {
	if ordinal := config.G(ctx).Processor; ordinal >= 0 {
		proc, err := ParseProcessor(ordinal)
		if err != nil {
			return 0, err
		}

		log.G(ctx).WithField("processor", proc).Debug("using processor override")
		return proc, nil
	}

	machine, err := id.machine()
	if err != nil {
		return 0, fmt.Errorf("could not determine machine architecture: %w", err)
	}

	// The armv6l boards predate the revision code's processor field.
	if machine == "armv6l" {
		return BCM2835, nil
	}

	rev, err := id.revisionCode(ctx)
	if err != nil {
		return 0, err
	}

	proc, err := DecodeRevision(rev)
	if err != nil {
		return 0, err
	}

	log.G(ctx).WithFields(map[string]interface{}{
		"revision":  fmt.Sprintf("%#x", rev),
		"processor": proc,
	}).Debug("detected board")

	return proc, nil
}

// DecodeRevision extracts the processor family from a new-style board
// revision code.
func DecodeRevision(rev uint32) (ProcessorType, error) {
	if rev&newStyleRevisionBit == 0 {
		return 0, fmt.Errorf("old-style revision code %#x carries no processor field", rev)
	}

	return ParseProcessor(int((rev & processorMask) >> processorShift))
}

// revisionCode reads the board revision code, preferring the device-tree
// export and falling back to /proc/cpuinfo.
func (id *Identifier) revisionCode(ctx context.Context) (uint32, error) {
	raw, err := os.ReadFile(id.dtRevisionFile)
	if err == nil {
		if len(raw) < 4 {
			return 0, fmt.Errorf("malformed revision in %s: %d bytes", id.dtRevisionFile, len(raw))
		}

		return binary.BigEndian.Uint32(raw), nil
	}

	if !os.IsNotExist(err) {
		return 0, fmt.Errorf("could not read %s: %w", id.dtRevisionFile, err)
	}

	log.G(ctx).WithField("file", id.cpuInfoFile).Trace("no device-tree revision, falling back")

	f, err := os.Open(id.cpuInfoFile)
	if err != nil {
		return 0, fmt.Errorf("could not read %s: %w", id.cpuInfoFile, err)
	}

	defer f.Close()

	return parseCPUInfoRevision(f)
}

// parseCPUInfoRevision scans cpuinfo-formatted text for the Revision line and
// interprets its value as a hexadecimal integer.
func parseCPUInfoRevision(r io.Reader) (uint32, error) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Revision") {
			continue
		}

		_, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		rev, err := strconv.ParseUint(strings.TrimSpace(value), 16, 32)
		if err != nil {
			return 0, fmt.Errorf("malformed Revision line %q: %w", line, err)
		}

		return uint32(rev), nil
	}

	if err := scanner.Err(); err != nil {
		return 0, err
	}

	return 0, fmt.Errorf("no Revision line found")
}
