// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "github.com/ukvm-io/vmd/lib/wire"

// OutputKind identifies which of the engine's writers an [Output]
// should be delivered through.
type OutputKind int

const (
	// ToSession writes Frame to the named session's TLS connection.
	ToSession OutputKind = iota
	// ToConsoleHelper writes Frame to the console helper socket.
	ToConsoleHelper
	// ToLogHelper writes Frame to the log helper socket.
	ToLogHelper
	// ToStatsHelper writes Frame to the stats helper socket.
	ToStatsHelper
	// CloseSession instructs the daemon loop to close and forget the
	// named session's TLS connection after delivering any prior
	// outputs addressed to it.
	CloseSession
	// KillVM instructs the daemon loop to send a termination signal to
	// Pid. Cleanup of engine state happens later, when the daemon's
	// process-wait goroutine reports the exit via [HandleShutdown] —
	// this output only requests the signal, per spec.md §4.5's
	// destroy: "send kill to pid, rely on exit callback for cleanup."
	KillVM
)

// Output is one instruction a handler asks the daemon loop to carry
// out. Handlers never perform I/O themselves — see the package doc —
// they only describe what should happen, in order.
type Output struct {
	Kind    OutputKind
	Session SessionID
	Frame   wire.Frame
	Pid     int
}

func toSession(id SessionID, frame wire.Frame) Output {
	return Output{Kind: ToSession, Session: id, Frame: frame}
}

func closeSession(id SessionID) Output {
	return Output{Kind: CloseSession, Session: id}
}

func toConsoleHelper(frame wire.Frame) Output {
	return Output{Kind: ToConsoleHelper, Frame: frame}
}

func toLogHelper(frame wire.Frame) Output {
	return Output{Kind: ToLogHelper, Frame: frame}
}

func toStatsHelper(frame wire.Frame) Output {
	return Output{Kind: ToStatsHelper, Frame: frame}
}

func killVM(pid int) Output {
	return Output{Kind: KillVM, Pid: pid}
}
