// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/wire"
)

func init() {
	registerSubcommand("crl", cmdCRL)
}

func cmdCRL(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: vmctl crl get <issuer> | vmctl crl install <crl-cert> <crl-key>")
	}
	switch args[0] {
	case "get":
		return cmdCRLGet(args[1:])
	case "install":
		return cmdCRLInstall(args[1:])
	default:
		return fmt.Errorf("unknown crl subcommand %q", args[0])
	}
}

func cmdCRLGet(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl crl get", pflag.ContinueOnError)
	g.register(flagSet)
	var outPath string
	flagSet.StringVar(&outPath, "out", "", "write the raw CRL DER to this path instead of stdout")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: vmctl crl get <issuer>")
	}

	conn, err := dial(g)
	if err != nil {
		return err
	}
	defer conn.Close()

	frame, err := sendCommand(conn, wire.TagCrl, 1, []byte(rest[0]))
	if err != nil {
		return err
	}
	if err := replyError(frame); err != nil {
		return err
	}
	_, der, err := wire.DecodeRequestID(frame.Body)
	if err != nil {
		return fmt.Errorf("vmd: malformed crl reply: %w", err)
	}
	if outPath != "" {
		return os.WriteFile(outPath, der, 0o644)
	}
	_, err = os.Stdout.Write(der)
	return err
}

// cmdCRLInstall presents a CRL certificate as the TLS client identity:
// per lib/engine's HandleInitial, a certificate classified as a CRL
// announcement installs it and closes the connection without ever
// entering the command loop, exactly like [cmdCreate]'s VM path.
func cmdCRLInstall(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl crl install", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: vmctl crl install <crl-cert> <crl-key>")
	}
	g.certPath, g.keyPath = rest[0], rest[1]

	return dialAndAwaitOutcome(g, "crl installed")
}
