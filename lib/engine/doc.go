// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the C6 core of spec.md §4.5: the single
// piece of mutable state the daemon owns, and the pure handlers that
// turn an inbound session event into a new state plus a list of
// outbound messages.
//
// State is value-typed, per spec.md §5: [State] is a plain struct and
// every handler takes the current value and returns the next one — it
// never mutates the State it was given. The daemon's event loop (see
// cmd/vmd) is the only place a State variable is actually stored; it
// holds one local variable and reassigns it after each handler call,
// which is what spec.md calls "the caller assigns atomically before
// any await." Go's cooperative goroutine model plus a single owning
// goroutine for that variable gives the same single-writer guarantee
// spec.md's single-threaded event loop relies on — no mutex is needed
// as long as exactly one goroutine ever holds the authoritative State.
//
// Maps inside State are never mutated in place: every handler that
// changes vms, sessions, or subscriptions clones the map it touches
// (lib/engine's withVM/withoutVM/withSession helpers) before returning
// the new State, so a caller that kept a reference to the previous
// value still sees the old map. This is the Go rendition of spec.md's
// "every mutating operation returns a new state" — full persistent
// data structures would be the purist's choice, but a clone-on-write
// map achieves the same observable immutability at every call
// boundary this package exposes, which is the property the
// single-writer daemon loop actually depends on.
//
// spec.md's tuple also lists a "socket-equality predicate" alongside
// the three named helper connections. That predicate exists in the
// source language to let a generic event-loop primitive tell which
// fd an incoming read belongs to; in Go, [State.ConsoleConn],
// [State.LogConn], and [State.StatsConn] are distinct typed fields,
// so the daemon's event loop already knows statically which helper
// produced an event and never needs to ask. No separate predicate
// field is carried.
package engine
