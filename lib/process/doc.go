// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers and child-process
// exit classification for vmd's daemon and helper binaries.
//
//   - [Fatal] reports a fatal error to stderr before exiting, for use
//     in main() when the structured logger may not yet exist.
//   - [Wait] and [ExitReason] classify a reaped VM process's wait
//     status into the exited/signalled/stopped vocabulary spec.md
//     §4.5 uses for the terminal log line of a VM's lifecycle.
package process
