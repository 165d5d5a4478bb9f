// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Command vmd is the unikernel VM orchestration daemon, spec.md §4.6's
// C7: it owns the three Unix helper sockets, the TLS listener, and the
// single engine.State value the accept loop and background feeders
// drive forward one handler call at a time.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var verbosity string
	var hypervisorBinary string
	var showVersion bool

	flagSet := pflag.NewFlagSet("vmd", pflag.ContinueOnError)
	flagSet.StringVar(&verbosity, "verbosity", "info", "log level: debug, info, warn, or error")
	flagSet.StringVar(&hypervisorBinary, "hypervisor", "ukvm-bin", "unikernel monitor binary to exec for each VM")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Println(version.Info())
		return nil
	}

	args := flagSet.Args()
	if len(args) != 4 {
		printHelp(flagSet)
		return fmt.Errorf("expected 4 positional arguments (working-dir cacert cert key), got %d", len(args))
	}
	workingDir, caCertPath, certPath, keyPath := args[0], args[1], args[2], args[3]

	level, err := parseLevel(verbosity)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	daemon, err := NewDaemon(Config{
		WorkingDir:       workingDir,
		CACertPath:       caCertPath,
		CertPath:         certPath,
		KeyPath:          keyPath,
		HypervisorBinary: hypervisorBinary,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("initializing daemon: %w", err)
	}
	return daemon.Run()
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

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `vmd — unikernel VM orchestration daemon.

Connects to the Unix helper sockets in working-dir (cons.sock and
log.sock required, stat.sock if present), then listens for mTLS
clients on TCP/1025. cacert
authenticates incoming client certificate chains; cert and key are
the daemon's own TLS identity.

Usage:
  vmd [flags] working-dir cacert cert key

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
