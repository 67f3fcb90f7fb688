// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package board

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rpisource.sh/config"
)

func TestDecodeRevision(t *testing.T) {
	tests := []struct {
		rev     uint32
		want    ProcessorType
		wantErr bool
	}{
		{rev: 0x900021, want: BCM2835},  // Model A+ 1.1
		{rev: 0xa01041, want: BCM2836},  // Pi 2B 1.1
		{rev: 0xa02082, want: BCM2837},  // Pi 3B 1.2
		{rev: 0xb03111, want: BCM2711},  // Pi 4B 1.1
		{rev: 0x0010, wantErr: true},    // old-style code, bit 23 clear
		{rev: 0x904000, wantErr: true},  // new-style, processor field out of range
		{rev: 0x90f000, wantErr: true},  // new-style, processor field out of range
	}

	for _, tt := range tests {
		got, err := DecodeRevision(tt.rev)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DecodeRevision(%#x) should fail, got %s", tt.rev, got)
			}
			continue
		}

		if err != nil {
			t.Errorf("DecodeRevision(%#x): %v", tt.rev, err)
			continue
		}

		if got != tt.want {
			t.Errorf("DecodeRevision(%#x) = %s, want %s", tt.rev, got, tt.want)
		}
	}
}

func TestRevisionProcessorMask(t *testing.T) {
	// The processor family lives in bits 12-15 of the revision code.
	if got := (uint32(0x9000c1) & 0xf000) >> 12; got != 0 {
		t.Errorf("(0x9000c1 & 0xf000) >> 12 = %d, want 0", got)
	}

	if got := (uint32(0xa02082) & 0xf000) >> 12; got != 2 {
		t.Errorf("(0xa02082 & 0xf000) >> 12 = %d, want 2", got)
	}
}

func TestParseCPUInfoRevision(t *testing.T) {
	cpuinfo := strings.Join([]string{
		"processor\t: 0",
		"model name\t: ARMv7 Processor rev 4 (v7l)",
		"Hardware\t: BCM2835",
		"Revision\t: a02082",
		"Serial\t\t: 00000000xxxxxxxx",
		"",
	}, "\n")

	rev, err := parseCPUInfoRevision(strings.NewReader(cpuinfo))
	if err != nil {
		t.Fatalf("parseCPUInfoRevision: %v", err)
	}

	if rev != 0xa02082 {
		t.Errorf("parseCPUInfoRevision = %#x, want 0xa02082", rev)
	}

	if _, err := parseCPUInfoRevision(strings.NewReader("processor: 0\n")); err == nil {
		t.Error("parseCPUInfoRevision without a Revision line should fail")
	}
}

func TestDetectFromDeviceTree(t *testing.T) {
	dir := t.TempDir()
	dtFile := filepath.Join(dir, "linux,revision")

	// 0xb03111, big-endian, as exported by the device tree.
	if err := os.WriteFile(dtFile, []byte{0x00, 0xb0, 0x31, 0x11}, 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := NewIdentifier(
		WithDTRevisionFile(dtFile),
		WithMachineFunc(func() (string, error) { return "aarch64", nil }),
	)
	if err != nil {
		t.Fatal(err)
	}

	proc, err := id.Detect(testContext(t, -1))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if proc != BCM2711 {
		t.Errorf("Detect = %s, want BCM2711", proc)
	}
}

func TestDetectFromCPUInfo(t *testing.T) {
	dir := t.TempDir()
	cpuInfoFile := filepath.Join(dir, "cpuinfo")

	if err := os.WriteFile(cpuInfoFile, []byte("Revision\t: a01041\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := NewIdentifier(
		WithDTRevisionFile(filepath.Join(dir, "does-not-exist")),
		WithCPUInfoFile(cpuInfoFile),
		WithMachineFunc(func() (string, error) { return "armv7l", nil }),
	)
	if err != nil {
		t.Fatal(err)
	}

	proc, err := id.Detect(testContext(t, -1))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if proc != BCM2836 {
		t.Errorf("Detect = %s, want BCM2836", proc)
	}
}

func TestDetectArmv6Shortcut(t *testing.T) {
	id, err := NewIdentifier(
		WithDTRevisionFile("/nonexistent"),
		WithCPUInfoFile("/nonexistent"),
		WithMachineFunc(func() (string, error) { return "armv6l", nil }),
	)
	if err != nil {
		t.Fatal(err)
	}

	proc, err := id.Detect(testContext(t, -1))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if proc != BCM2835 {
		t.Errorf("Detect = %s, want BCM2835", proc)
	}
}

func TestDetectOverride(t *testing.T) {
	id, err := NewIdentifier(
		WithMachineFunc(func() (string, error) {
			t.Fatal("machine should not be consulted with an override")
			return "", nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	proc, err := id.Detect(testContext(t, 2))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if proc != BCM2837 {
		t.Errorf("Detect = %s, want BCM2837", proc)
	}
}

func testContext(t *testing.T, processor int) context.Context {
	t.Helper()

	return config.WithConfig(context.Background(), &config.Config{Processor: processor})
}
