// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

func init() {
	registerSubcommand("console", cmdConsole)
	registerSubcommand("log", cmdLog)
}

func cmdConsole(args []string) error {
	return cmdStream(args, "vmctl console", wire.TagConsole, wire.TagConsoleLine)
}

func cmdLog(args []string) error {
	return cmdStream(args, "vmctl log", wire.TagLog, wire.TagLogLine)
}

// cmdStream subscribes to a VM's console or log and prints every line
// pushed until the connection closes or is interrupted — spec.md §4.5's
// subscribe commands never terminate the stream on their own.
func cmdStream(args []string, usage string, subscribeTag, eventTag wire.Tag) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet(usage, pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: %s <id>", usage)
	}
	id := rest[0]

	conn, err := dial(g)
	if err != nil {
		return err
	}
	defer conn.Close()

	frame, err := sendCommand(conn, subscribeTag, 1, []byte(id))
	if err != nil {
		return err
	}
	if err := replyError(frame); err != nil {
		return err
	}

	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, transport.ErrEOF) {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		if frame.Header.Tag != eventTag {
			continue
		}
		_, line, err := wire.DecodeEvent(frame.Body)
		if err != nil {
			return fmt.Errorf("malformed event: %w", err)
		}
		os.Stdout.Write(line)
		if len(line) == 0 || line[len(line)-1] != '\n' {
			fmt.Println()
		}
	}
}
