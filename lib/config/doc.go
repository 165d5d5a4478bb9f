// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the optional YAML tuning file for the stats
// helper (cmd/vmd-stats). Every other vmd binary takes its full
// configuration from positional arguments and flags (spec.md §6); this
// package exists only for the one knob set that does not belong on a
// command line: per-backend polling behavior.
//
// Configuration is loaded from a single file specified by either the
// VMD_STATS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic discovery. Absence of a
// config file is not an error — [Default] supplies every field, and
// the stats helper runs fine without one.
//
// This package depends on no other vmd package.
package config
