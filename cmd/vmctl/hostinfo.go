// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/hostcap"
)

func init() {
	registerSubcommand("hostinfo", cmdHostinfo)
}

// cmdHostinfo is purely descriptive and touches no network: it reads
// the sidecar file directly out of a working directory the operator
// names, per SPEC_FULL.md's "the engine itself never reads host
// hardware and its accounting is unaffected."
func cmdHostinfo(args []string) error {
	var workingDir string
	flagSet := pflag.NewFlagSet("vmctl hostinfo", pflag.ContinueOnError)
	flagSet.StringVar(&workingDir, "working-dir", ".", "vmd working directory containing host-capabilities.jsonc")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	path := filepath.Join(workingDir, hostcap.FileName)
	caps, err := hostcap.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("no %s in %s\n", hostcap.FileName, workingDir)
			return nil
		}
		return err
	}

	fmt.Printf("cpuids:    %v\n", caps.CPUIDs)
	fmt.Printf("bridges:   %v\n", caps.Bridges)
	fmt.Printf("memory_mb: %d\n", caps.MemoryMB)
	fmt.Printf("block_mb:  %d\n", caps.BlockMB)
	if caps.Description != "" {
		fmt.Printf("notes:     %s\n", caps.Description)
	}
	return nil
}
