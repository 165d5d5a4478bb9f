// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

// discardConn is a [HelperConn] that discards every write, for tests
// that only care about the Outputs a handler describes, not about
// actual socket I/O.
type discardConn struct{}

func (discardConn) Write(p []byte) (int, error) { return len(p), nil }
