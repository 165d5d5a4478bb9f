// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Command vmd-stats is the optional statistics helper of spec.md §6:
// the engine registers and removes pids as VMs start and stop, and
// forwards one-shot "statistics <id>" requests that this helper
// answers from its most recent poll of that pid's OS counters.
//
// spec.md §1 names "the statistics gatherer's OS-specific counter
// retrieval" as out of scope for the core specification; this binary
// implements a single portable backend (Linux procfs) behind the
// [backend] interface rather than the full multi-platform counter
// matrix a production build would carry, and says so in its
// configuration surface (lib/config's PreferredBackends) rather than
// silently pretending to be complete.
package main
