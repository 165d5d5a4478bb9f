// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Command vmd-console is the console helper of spec.md §6: it listens
// on cons.sock, accepts attach/detach commands from the engine, and
// pushes console-line events back for every attached VM id.
//
// The actual mechanism by which console output reaches this process —
// a pty, a hypervisor-native console channel, a serial device — is
// spec.md §1's "out of scope: ... the hypervisor invocation." This
// binary implements only the wire-facing half of the contract: a
// second, ingest-only Unix socket accepts framed console-line events
// from whatever local process does own that mechanism (in this
// module, vmd's own stdout relay bypasses this ingest path entirely
// for the common case — see cmd/vmd/daemon.go's relayConsole and
// DESIGN.md's note on why — but an operator or test harness can push
// lines through vmd-console directly for any id it has attached).
package main
