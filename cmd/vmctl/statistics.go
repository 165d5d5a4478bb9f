// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/codec"
	"github.com/ukvm-io/vmd/lib/wire"
)

func init() {
	registerSubcommand("statistics", cmdStatistics)
}

// sample mirrors cmd/vmd-stats's wire shape — the two binaries share
// no package, so vmctl decodes the same CBOR fields directly rather
// than exporting a helper-internal type across process boundaries.
type sample struct {
	CPUTicks   int64 `cbor:"cpu_ticks"`
	MemoryKB   int64 `cbor:"memory_kb"`
	VoluntaryC int64 `cbor:"voluntary_ctxt_switches"`
}

func cmdStatistics(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl statistics", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: vmctl statistics <id>")
	}

	conn, err := dial(g)
	if err != nil {
		return err
	}
	defer conn.Close()

	frame, err := sendCommand(conn, wire.TagStatistics, 1, []byte(rest[0]))
	if err != nil {
		return err
	}
	if err := replyError(frame); err != nil {
		return err
	}
	_, payload, err := wire.DecodeRequestID(frame.Body)
	if err != nil {
		return fmt.Errorf("vmd: malformed statistics reply: %w", err)
	}
	var s sample
	if len(payload) > 0 {
		if err := codec.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("vmd: decoding statistics reply: %w", err)
		}
	}
	fmt.Printf("cpu_ticks=%d memory_kb=%d voluntary_ctxt_switches=%d\n", s.CPUTicks, s.MemoryKB, s.VoluntaryC)
	return nil
}
