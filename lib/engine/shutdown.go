// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/wire"
)

// HandleShutdown is invoked once the background wait task on a VM's
// pid completes, per spec.md §4.5's handle_shutdown(state, vm,
// status): it removes the VM from the map, sends "remove pid" to
// stats, closes the console attachment, pushes a terminal log line
// carrying the exit reason, notifies all subscribers, then drops
// their subscriptions to that id.
func HandleShutdown(state State, vm RunningVM, status process.ExitReason) (State, []Output) {
	id := vm.ID.String()
	var outputs []Output

	if state.StatsConn != nil {
		body := wire.EncodePidCommand(id, vm.Pid)
		outputs = append(outputs, toStatsHelper(wire.NewFrame(state.WireVersion, wire.TagRemovePid, body)))
	}
	detachBody := wire.EncodeEvent(id, nil)
	outputs = append(outputs, toConsoleHelper(wire.NewFrame(state.WireVersion, wire.TagDetach, detachBody)))

	line := terminalLogLine(id, status)
	logFrame := wire.NewFrame(state.WireVersion, wire.TagLogLine, line)
	for _, sessionID := range state.subscribers(id, func(s Session) map[string]bool { return s.Log }) {
		outputs = append(outputs, toSession(sessionID, logFrame))
	}
	consoleFrame := wire.NewFrame(state.WireVersion, wire.TagConsoleLine, line)
	for _, sessionID := range state.subscribers(id, func(s Session) map[string]bool { return s.Console }) {
		outputs = append(outputs, toSession(sessionID, consoleFrame))
	}

	return dropVM(state, id), outputs
}

// HandleDisconnect is spec.md §4.5's handle_disconnect(state, session):
// it returns the outbound close-frames for any downstream helper
// sessions this session owned — none, in this engine's model, since
// only TLS sessions subscribe and helpers are shared daemon-wide
// connections no single session owns — removes all of its
// subscriptions, and drops it from the session set.
func HandleDisconnect(state State, sessionID SessionID) State {
	if _, ok := state.Sessions[sessionID]; !ok {
		return state
	}
	// A session's Console/Log maps are private to its own Session
	// value; dropping the session from state.Sessions discards its
	// subscriptions along with it. No other state references them —
	// dropVM reaches subscribers only by walking state.Sessions.
	return state.withoutSession(sessionID)
}
