// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for vmd packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. This exists because Unix domain sockets have a
// 108-byte path limit (sun_path in sockaddr_un), and some CI sandboxes
// set TMPDIR to deeply nested paths that exceed this limit, making
// t.TempDir() unsuitable for the three helper sockets the daemon dials.
// The directory is automatically removed when the test completes.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts are
// used.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// VM ids or request ids distinguishable across table-driven cases.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no dependency on any other vmd package.
package testutil
