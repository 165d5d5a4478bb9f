// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/config"
	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var socketPath, configPath, verbosity string
	var interval time.Duration
	var showVersion bool

	flagSet := pflag.NewFlagSet("vmd-stats", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", filepath.Join(os.TempDir(), "stat.sock"), "path of the engine-facing stats socket")
	flagSet.DurationVar(&interval, "interval", 0, "poll interval (default 10s, or the config file's poll_interval)")
	flagSet.StringVar(&configPath, "config", "", "optional YAML tuning file (poll_jitter, preferred_backends)")
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

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if interval > 0 {
		cfg.PollInterval = interval.String()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(verbosity)}))

	h := newHelper(logger, cfg, selectBackend(cfg.PreferredBackends))
	return h.run(socketPath)
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
