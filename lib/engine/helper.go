// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/wire"
)

// HandleConsoleEvent parses a console-line event pushed by the console
// helper and fans it out to every session subscribed to the referenced
// VM id, per spec.md §4.5's handle_cons. An id with no subscribers, or
// one the engine has never heard of, is not an error; for an id the
// engine has never heard of, unknownID comes back non-empty so the
// daemon loop can log it at debug level, per
// spec.md's "unknown ids are dropped with a debug log, not an error."
func HandleConsoleEvent(state State, body []byte) (next State, outputs []Output, unknownID string, err error) {
	return handleHelperLine(state, body, wire.TagConsoleLine, func(s Session) map[string]bool { return s.Console })
}

// HandleLogEvent parses a log-line event pushed by the log helper,
// mirroring [HandleConsoleEvent] for log subscribers.
func HandleLogEvent(state State, body []byte) (next State, outputs []Output, unknownID string, err error) {
	return handleHelperLine(state, body, wire.TagLogLine, func(s Session) map[string]bool { return s.Log })
}

func handleHelperLine(state State, body []byte, tag wire.Tag, field func(Session) map[string]bool) (State, []Output, string, error) {
	id, line, err := wire.DecodeEvent(body)
	if err != nil {
		return state, nil, "", framingError("%v", err)
	}
	if _, ok := state.VMs[id]; !ok {
		return state, nil, id, nil
	}

	subs := state.subscribers(id, field)
	if len(subs) == 0 {
		return state, nil, "", nil
	}

	eventBody := wire.EncodeEvent(id, line)
	outputs := make([]Output, len(subs))
	for i, sessionID := range subs {
		outputs[i] = toSession(sessionID, wire.NewFrame(state.WireVersion, tag, eventBody))
	}
	return state, outputs, "", nil
}

// HandleStatEvent parses a one-shot statistics reply pushed by the
// stats helper and routes it to the session that issued the original
// request, per spec.md §4.5's handle_stat. An unrecognized request id
// (the stats helper answered after the requesting session already
// disconnected, or answered twice) is dropped, not an error.
func HandleStatEvent(state State, body []byte) (State, []Output, error) {
	requestID, payload, err := wire.DecodeRequestID(body)
	if err != nil {
		return state, nil, framingError("%v", err)
	}
	next, sessionID, ok := state.withoutPendingStat(requestID)
	if !ok {
		return state, nil, nil
	}
	frame := wire.Success(requestID, next.WireVersion, payload)
	return next, []Output{toSession(sessionID, frame)}, nil
}

// terminalLogLine renders a VM's exit reason as the body of its
// terminal log event, per spec.md §4.5's "exited N / signalled N /
// stopped N."
func terminalLogLine(id string, reason process.ExitReason) []byte {
	return wire.EncodeEvent(id, []byte(reason.String()))
}
