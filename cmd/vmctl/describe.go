// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ukvm-io/vmd/lib/hostcap"
)

func init() {
	registerSubcommand("describe", cmdDescribe)
}

// describeView is the YAML shape rendered for one VM: everything the
// info reply carries, plus the host cross-check when a sidecar file
// is available, per SPEC_FULL.md's "an operator can see at a glance
// whether a tenant's cpuids/bridges grants are satisfiable."
type describeView struct {
	ID              string   `yaml:"id"`
	CPUID           int64    `yaml:"cpuid"`
	CPUIDOnHost     *bool    `yaml:"cpuid_on_host,omitempty"`
	RequestedMemory int64    `yaml:"requested_memory"`
	BlockDevice     string   `yaml:"block_device,omitempty"`
	Networks        []string `yaml:"networks,omitempty"`
	Image           string   `yaml:"image"`
}

func cmdDescribe(args []string) error {
	var g globalFlags
	var workingDir string
	flagSet := pflag.NewFlagSet("vmctl describe", pflag.ContinueOnError)
	g.register(flagSet)
	flagSet.StringVar(&workingDir, "working-dir", "", "vmd working directory to cross-check against host-capabilities.jsonc")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: vmctl describe <id>")
	}
	id := rest[0]

	entries, err := fetchInfo(g, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no such vm: %s", id)
	}
	entry := entries[0]

	view := describeView{
		ID:              entry.ID,
		CPUID:           entry.CPUID,
		RequestedMemory: entry.RequestedMemory,
		BlockDevice:     entry.BlockDevice,
		Networks:        entry.Networks,
		Image:           entry.Image,
	}
	if workingDir != "" {
		if caps, err := hostcap.Load(workingDir + "/" + hostcap.FileName); err == nil {
			onHost := caps.HasCPUID(entry.CPUID)
			view.CPUIDOnHost = &onHost
		}
	}

	doc, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("rendering vm description: %w", err)
	}
	return quick.Highlight(os.Stdout, string(doc), "yaml", "terminal256", "monokai")
}
