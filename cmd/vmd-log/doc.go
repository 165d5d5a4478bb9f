// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Command vmd-log is the log helper of spec.md §6: log.sock is
// unidirectional in (helper → engine), so unlike vmd-console this
// helper carries no attach/detach state — the engine decides which
// sessions care about which VM id's log lines internally
// ([engine.HandleLogEvent]). This binary only relays whatever it is
// given on its ingest socket straight onto the engine connection,
// unchanged; the timestamp it saw each line at is kept only in its
// own per-vm ring.
package main
