// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/transport"
)

func init() {
	registerSubcommand("create", cmdCreate)
}

// cmdCreate presents a VM certificate as the TLS client identity: per
// lib/engine's HandleInitial, creation and force-creation are
// triggered by the certificate presented during the handshake itself,
// not by a command frame — [Action] never reaches [engine.ActionLoop]
// for a VM cert, so there is no reply to read on success. A policy or
// conflict rejection instead arrives as one failure frame before the
// daemon closes the connection (cmd/vmd/session.go); anything else
// (silent close, EOF) means the daemon accepted the certificate and
// is spawning the VM in the background.
func cmdCreate(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl create", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: vmctl create <vm-cert> <vm-key>")
	}
	g.certPath, g.keyPath = rest[0], rest[1]

	return dialAndAwaitOutcome(g, "vm accepted, spawning")
}

// dialAndAwaitOutcome is shared by create and "crl install": both
// trigger their effect purely by presenting a certificate during the
// handshake and never send a command frame.
func dialAndAwaitOutcome(g globalFlags, successMessage string) error {
	conn, err := dial(g)
	if err != nil {
		return err
	}
	defer conn.Close()

	frame, err := transport.ReadFrame(conn)
	if err != nil {
		if errors.Is(err, transport.ErrEOF) {
			fmt.Println(successMessage)
			return nil
		}
		return fmt.Errorf("reading daemon response: %w", err)
	}
	if err := replyError(frame); err != nil {
		return err
	}
	fmt.Println(successMessage)
	return nil
}
