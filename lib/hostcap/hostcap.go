// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostcap parses the optional host-capabilities.jsonc sidecar
// SPEC_FULL.md's Configuration section describes: a hand-authored
// inventory of a host's cpuids and bridge names, kept next to a vmd
// working directory so `vmctl hostinfo`/`describe` can cross-check a
// tenant's delegated grants against what the host actually has. The
// engine itself never reads this file; its absence only disables the
// cross-check.
package hostcap

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Capabilities is the sidecar's decoded shape.
type Capabilities struct {
	CPUIDs      []int64  `json:"cpuids"`
	Bridges     []string `json:"bridges"`
	MemoryMB    int64    `json:"memory_mb"`
	BlockMB     int64    `json:"block_mb"`
	Description string   `json:"description,omitempty"`
}

// FileName is the sidecar's conventional name inside a vmd working
// directory.
const FileName = "host-capabilities.jsonc"

// Load reads and parses path as JSONC (// comments and trailing commas
// stripped before decoding). A missing file returns the unwrapped
// os.ReadFile error, so callers use os.IsNotExist to distinguish
// "not configured" from a malformed file.
func Load(path string) (Capabilities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Capabilities{}, err
	}
	var caps Capabilities
	if err := json.Unmarshal(jsonc.ToJSON(data), &caps); err != nil {
		return Capabilities{}, fmt.Errorf("hostcap: parsing %s: %w", path, err)
	}
	return caps, nil
}

// HasCPUID reports whether id appears in the host's declared set.
func (c Capabilities) HasCPUID(id int64) bool {
	for _, have := range c.CPUIDs {
		if have == id {
			return true
		}
	}
	return false
}

// HasBridge reports whether name appears in the host's declared set.
func (c Capabilities) HasBridge(name string) bool {
	for _, have := range c.Bridges {
		if have == name {
			return true
		}
	}
	return false
}
