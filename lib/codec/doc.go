// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides vmd's standard CBOR encoding configuration.
//
// The wire protocol's 8-byte frame header (version, tag, length) is
// fixed-layout and encoded directly with encoding/binary — see
// lib/wire. CBOR is used only for the *body* of frames that carry
// structured data: info replies and statistics samples. Console and
// log line events use lib/wire's binary event layout instead.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes (TestMarshalDeterministic checks this).
//
// For buffer-oriented operations (frame bodies, on-disk files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
