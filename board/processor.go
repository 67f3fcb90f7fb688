// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package board

import "fmt"

// ProcessorType identifies the SoC family of a Raspberry Pi board.  The
// ordinals match the processor field of the board revision code.
type ProcessorType int

const (
	BCM2835 ProcessorType = iota
	BCM2836
	BCM2837
	BCM2711
)

// ProcessorTypes returns all known SoC families in ordinal order.
func ProcessorTypes() []ProcessorType {
	return []ProcessorType{
		BCM2835,
		BCM2836,
		BCM2837,
		BCM2711,
	}
}

// ParseProcessor validates a raw ordinal, e.g. one supplied on the command
// line, against the known SoC families.
func ParseProcessor(ordinal int) (ProcessorType, error) {
	p := ProcessorType(ordinal)
	if p < BCM2835 || p > BCM2711 {
		return 0, fmt.Errorf("unknown processor type: %d", ordinal)
	}

	return p, nil
}

// String implements fmt.Stringer.
func (p ProcessorType) String() string {
	switch p {
	case BCM2835:
		return "BCM2835"
	case BCM2836:
		return "BCM2836"
	case BCM2837:
		return "BCM2837"
	case BCM2711:
		return "BCM2711"
	}

	return fmt.Sprintf("unknown processor (%d)", int(p))
}

// SymversSuffix returns the filename suffix distinguishing the symbol-version
// file built for this SoC family, e.g. Module7l.symvers for the BCM2711.
func (p ProcessorType) SymversSuffix() (string, error) {
	switch p {
	case BCM2835:
		return "", nil
	case BCM2836, BCM2837:
		return "7", nil
	case BCM2711:
		return "7l", nil
	}

	return "", fmt.Errorf("unknown processor type: %d", int(p))
}

// DefconfigTarget returns the make target generating the default kernel
// configuration for this SoC family.  The BCM2836 and BCM2837 share a
// configuration.
func (p ProcessorType) DefconfigTarget() (string, error) {
	switch p {
	case BCM2835:
		return "bcmrpi_defconfig", nil
	case BCM2836, BCM2837:
		return "bcm2709_defconfig", nil
	case BCM2711:
		return "bcm2711_defconfig", nil
	}

	return "", fmt.Errorf("unknown processor type: %d", int(p))
}
