// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// sample is one pid's polled counters at a point in time.
type sample struct {
	CPUTicks   int64 `cbor:"cpu_ticks"`
	MemoryKB   int64 `cbor:"memory_kb"`
	VoluntaryC int64 `cbor:"voluntary_ctxt_switches"`
}

// backend polls a single pid's OS counters. The engine's contract
// (spec.md §1) treats this retrieval as out of scope; [procfsBackend]
// is the one concrete implementation this binary ships, named so a
// deployment on a platform without /proc can supply its own without
// touching the polling loop in helper.go.
type backend interface {
	Name() string
	Sample(pid int) (sample, error)
}

// selectBackend honors PreferredBackends by name, falling back to
// procfs (the only backend this binary implements) when the list is
// empty or names nothing this build recognizes.
func selectBackend(preferred []string) backend {
	for _, name := range preferred {
		if name == "procfs" {
			return procfsBackend{}
		}
	}
	return procfsBackend{}
}

// procfsBackend reads /proc/<pid>/stat and /proc/<pid>/status, the
// same counters `ps`/`top` are built on. Only Linux exposes /proc in
// this shape; Sample returns an error on any other platform's
// missing files, which the poll loop logs and skips rather than
// treating as fatal.
type procfsBackend struct{}

func (procfsBackend) Name() string { return "procfs" }

func (procfsBackend) Sample(pid int) (sample, error) {
	ticks, err := readCPUTicks(pid)
	if err != nil {
		return sample{}, err
	}
	memKB, voluntary, err := readStatus(pid)
	if err != nil {
		return sample{}, err
	}
	return sample{CPUTicks: ticks, MemoryKB: memKB, VoluntaryC: voluntary}, nil
}

// readCPUTicks parses /proc/<pid>/stat fields 14 and 15 (utime,
// stime): the comm field (2) may itself contain spaces and
// parentheses, so parsing starts after the last ')' rather than
// naively splitting on whitespace.
func readCPUTicks(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	line := string(data)
	end := strings.LastIndexByte(line, ')')
	if end < 0 || end+2 >= len(line) {
		return 0, fmt.Errorf("vmd-stats: malformed /proc/%d/stat", pid)
	}
	fields := strings.Fields(line[end+2:])
	// fields[0] is state (field 3); utime is field 14, stime field 15,
	// i.e. fields[11] and fields[12] of this post-comm slice.
	if len(fields) < 13 {
		return 0, fmt.Errorf("vmd-stats: /proc/%d/stat has too few fields", pid)
	}
	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return 0, err
	}
	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return 0, err
	}
	return utime + stime, nil
}

func readStatus(pid int) (memKB int64, voluntary int64, err error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "VmRSS:"):
			memKB = parseStatusInt(line)
		case strings.HasPrefix(line, "voluntary_ctxt_switches:"):
			voluntary = parseStatusInt(line)
		}
	}
	return memKB, voluntary, scanner.Err()
}

// parseStatusInt extracts the numeric field from a "Key:\tvalue kB"
// or "Key:\tvalue" line in /proc/<pid>/status, returning 0 on any
// parse failure rather than propagating an error for a single
// cosmetic field.
func parseStatusInt(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
