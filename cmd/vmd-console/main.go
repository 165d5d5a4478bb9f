// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

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
	var socketPath, ingestPath, verbosity string
	var showVersion bool

	flagSet := pflag.NewFlagSet("vmd-console", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", filepath.Join(os.TempDir(), "cons.sock"), "path of the engine-facing console socket")
	flagSet.StringVar(&ingestPath, "ingest", "", "path of an ingest socket for pushing console lines (default: <socket>.ingest)")
	flagSet.StringVar(&verbosity, "verbosity", "info", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println(version.Info())
		return nil
	}
	if ingestPath == "" {
		ingestPath = socketPath + ".ingest"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(verbosity)}))

	h := newHelper(logger)
	return h.run(socketPath, ingestPath)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
