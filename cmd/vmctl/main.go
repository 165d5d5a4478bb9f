// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Command vmctl is the administrative client for vmd: it holds the
// client half of spec.md §4's mTLS+framed protocol, one subcommand per
// wire command tag, plus the operator niceties SPEC_FULL.md's DOMAIN
// STACK table names (ps --pick, describe, hostinfo, top).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/version"
)

// globalFlags are shared by every subcommand that dials the daemon.
type globalFlags struct {
	host       string
	port       int
	caCertPath string
	certPath   string
	keyPath    string
	verbosity  string
}

func (g *globalFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.host, "host", "127.0.0.1", "vmd host to connect to")
	flagSet.IntVar(&g.port, "port", 1025, "vmd TCP/1025 listener port")
	flagSet.StringVar(&g.caCertPath, "cacert", "", "CA certificate that signed the daemon's TLS identity")
	flagSet.StringVar(&g.certPath, "cert", "", "client certificate presented to the daemon (identity and policy)")
	flagSet.StringVar(&g.keyPath, "key", "", "private key for --cert")
	flagSet.StringVar(&g.verbosity, "verbosity", "warn", "log level: debug, info, warn, or error")
}

func (g *globalFlags) logger() *slog.Logger {
	level, err := parseLevel(g.verbosity)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("expected a subcommand")
	}

	sub, rest := args[0], args[1:]
	if sub == "--version" || sub == "version" {
		fmt.Println(version.Info())
		return nil
	}
	if sub == "--help" || sub == "-h" || sub == "help" {
		printUsage()
		return nil
	}

	cmd, ok := subcommands[sub]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown subcommand %q", sub)
	}
	return cmd(rest)
}

// subcommands maps each vmctl verb to its implementation. Registered
// in the files that define them (info.go, destroy.go, ...) via init,
// so that adding a subcommand never touches this file.
var subcommands = map[string]func(args []string) error{}

func registerSubcommand(name string, fn func(args []string) error) {
	subcommands[name] = fn
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown --verbosity %q", s)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `vmctl — administrative client for vmd.

Usage:
  vmctl <subcommand> [flags]

Subcommands:
  create <vm-cert> <vm-key>     present a VM certificate to spawn it
  destroy <id>                  destroy a running VM
  info [glob]                   list running VMs matching glob (default *)
  console <id>                  stream a VM's console
  log <id>                      stream a VM's log
  statistics <id>                fetch one-shot OS counters for a VM
  crl get <issuer>               download the installed CRL for issuer
  crl install <crl-cert> <crl-key>  present a CRL certificate to install it
  ps [--pick]                   list VMs, optionally fuzzy-picking one
  describe <id>                  syntax-highlighted YAML detail view
  hostinfo                       print host-capabilities.jsonc, if present
  top                            live-refreshing table of running VMs

Every subcommand except hostinfo accepts --host, --port, --cacert,
--cert, --key.
`)
}
