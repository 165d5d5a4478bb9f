// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/wire"
)

func init() {
	registerSubcommand("destroy", cmdDestroy)
}

func cmdDestroy(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl destroy", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: vmctl destroy <id>")
	}

	conn, err := dial(g)
	if err != nil {
		return err
	}
	defer conn.Close()

	frame, err := sendCommand(conn, wire.TagDestroy, 1, []byte(rest[0]))
	if err != nil {
		return err
	}
	if err := replyError(frame); err != nil {
		return err
	}
	fmt.Printf("destroying %s\n", rest[0])
	return nil
}
