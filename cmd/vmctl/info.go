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
	registerSubcommand("info", cmdInfo)
}

// infoEntry mirrors lib/engine's unexported reply shape — vmctl has no
// access to that type, so it decodes the same CBOR fields directly
// rather than exporting engine internals just for this client.
type infoEntry struct {
	ID              string   `cbor:"id"`
	CPUID           int64    `cbor:"cpuid"`
	RequestedMemory int64    `cbor:"requested_memory"`
	BlockDevice     string   `cbor:"block_device,omitempty"`
	Networks        []string `cbor:"networks,omitempty"`
	Image           string   `cbor:"image"`
}

func cmdInfo(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl info", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	glob := "*"
	if rest := flagSet.Args(); len(rest) > 0 {
		glob = rest[0]
	}

	entries, err := fetchInfo(g, glob)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-32s cpuid=%-4d memory=%-8d image=%-16s block=%s networks=%v\n",
			e.ID, e.CPUID, e.RequestedMemory, e.Image, e.BlockDevice, e.Networks)
	}
	return nil
}

// fetchInfo issues a single "info glob" command and decodes its
// CBOR reply, shared by info/ps/describe/top.
func fetchInfo(g globalFlags, glob string) ([]infoEntry, error) {
	conn, err := dial(g)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	frame, err := sendCommand(conn, wire.TagInfo, 1, []byte(glob))
	if err != nil {
		return nil, err
	}
	if err := replyError(frame); err != nil {
		return nil, err
	}
	_, payload, err := wire.DecodeRequestID(frame.Body)
	if err != nil {
		return nil, fmt.Errorf("vmd: malformed info reply: %w", err)
	}
	var entries []infoEntry
	if len(payload) > 0 {
		if err := codec.Unmarshal(payload, &entries); err != nil {
			return nil, fmt.Errorf("vmd: decoding info reply: %w", err)
		}
	}
	return entries, nil
}
