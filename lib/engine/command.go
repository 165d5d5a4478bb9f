// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/ukvm-io/vmd/lib/policy"
	"github.com/ukvm-io/vmd/lib/vmid"
	"github.com/ukvm-io/vmd/lib/wire"
)

// Command is a decoded request from the command loop, spec.md §4.5's
// handle_command. Exactly one of the id-bearing fields is meaningful
// per Tag; see lib/wire for the tag space.
type Command struct {
	Tag       wire.Tag
	RequestID uint32
	IDGlob    string // info
	ID        string // destroy, console, log, statistics
	Issuer    string // crl
}

// HandleCommand dispatches one decoded command from an administrative
// or subscriber session, per spec.md §4.5. session must already be
// present in state.Sessions.
func HandleCommand(state State, sessionID SessionID, cmd Command) (State, []Output, error) {
	session, ok := state.Sessions[sessionID]
	if !ok {
		return state, nil, runtimeError("unknown session %d", sessionID)
	}

	switch cmd.Tag {
	case wire.TagInfo:
		return handleInfo(state, session, cmd)
	case wire.TagDestroy:
		return handleDestroy(state, session, cmd)
	case wire.TagConsole:
		return handleSubscribe(state, session, cmd, true)
	case wire.TagLog:
		return handleSubscribe(state, session, cmd, false)
	case wire.TagStatistics:
		return handleStatistics(state, session, cmd)
	case wire.TagCrl:
		return handleCRLDownload(state, session, cmd)
	default:
		frame := wire.Fail("unknown command", cmd.RequestID, state.WireVersion)
		return state, []Output{toSession(sessionID, frame)}, nil
	}
}

func fail(state State, sessionID SessionID, requestID uint32, msg string) (State, []Output, error) {
	frame := wire.Fail(msg, requestID, state.WireVersion)
	return state, []Output{toSession(sessionID, frame)}, nil
}

func handleInfo(state State, session Session, cmd Command) (State, []Output, error) {
	if !session.Permissions.Has(policy.PermInfo) {
		return fail(state, session.ID, cmd.RequestID, "permission denied: Info required")
	}
	var matches []RunningVM
	for _, vm := range state.VMs {
		if !vm.ID.HasPrefix(session.Prefix) {
			continue // tenants cannot see siblings
		}
		ok, err := vm.ID.Match(cmd.IDGlob)
		if err != nil {
			return fail(state, session.ID, cmd.RequestID, err.Error())
		}
		if ok {
			matches = append(matches, vm)
		}
	}
	payload, err := encodeInfoReply(matches)
	if err != nil {
		return state, nil, runtimeError("encoding info reply: %v", err)
	}
	frame := wire.Success(cmd.RequestID, state.WireVersion, payload)
	return state, []Output{toSession(session.ID, frame)}, nil
}

func handleDestroy(state State, session Session, cmd Command) (State, []Output, error) {
	id, err := vmid.Parse(cmd.ID)
	if err != nil {
		return fail(state, session.ID, cmd.RequestID, err.Error())
	}
	vm, ok := state.VMs[cmd.ID]
	if !ok {
		return fail(state, session.ID, cmd.RequestID, "no such vm")
	}

	ownPrefix := id.HasPrefix(session.Prefix)
	allowed := session.Permissions.Has(policy.PermCreate) ||
		(ownPrefix && session.Permissions.Has(policy.PermForceCreate))
	if !allowed {
		return fail(state, session.ID, cmd.RequestID, "permission denied")
	}

	// Map cleanup is driven by the pid's wait completion (HandleShutdown),
	// not by this handler: state still holds vm (with its Pid) after this
	// call returns, since only dropVM removes it. This handler's own
	// [KillVM] output is what actually sends the signal — the daemon
	// loop carries it out immediately alongside the success reply,
	// per spec.md §4.5's destroy: "send kill to pid, rely on exit
	// callback for cleanup."
	frame := wire.Success(cmd.RequestID, state.WireVersion, nil)
	return state, []Output{toSession(session.ID, frame), killVM(vm.Pid)}, nil
}

func handleSubscribe(state State, session Session, cmd Command, console bool) (State, []Output, error) {
	required := policy.PermLog
	if console {
		required = policy.PermConsole
	}
	if !session.Permissions.Has(required) {
		return fail(state, session.ID, cmd.RequestID, "permission denied")
	}
	if _, ok := state.VMs[cmd.ID]; !ok {
		return fail(state, session.ID, cmd.RequestID, "no such vm")
	}

	subs := session.Log
	if console {
		subs = session.Console
	}
	next := make(map[string]bool, len(subs)+1)
	for id, on := range subs {
		next[id] = on
	}
	next[cmd.ID] = true
	if console {
		session.Console = next
	} else {
		session.Log = next
	}
	state = state.withSession(session)

	frame := wire.Success(cmd.RequestID, state.WireVersion, nil)
	return state, []Output{toSession(session.ID, frame)}, nil
}

func handleStatistics(state State, session Session, cmd Command) (State, []Output, error) {
	if !session.Permissions.Has(policy.PermStatistics) {
		return fail(state, session.ID, cmd.RequestID, "permission denied: Statistics required")
	}
	if _, ok := state.VMs[cmd.ID]; !ok {
		return fail(state, session.ID, cmd.RequestID, "no such vm")
	}
	if state.StatsConn == nil {
		return fail(state, session.ID, cmd.RequestID, "statistics unavailable")
	}

	state = state.withPendingStat(cmd.RequestID, session.ID)

	body := wire.EncodeRequestID(cmd.RequestID, []byte(cmd.ID))
	frame := wire.NewFrame(state.WireVersion, wire.TagStatistics, body)
	// The one-shot reply is relayed back to this session by
	// HandleStatEvent once the stats helper answers, correlated
	// through state.PendingStats by this request id.
	return state, []Output{toStatsHelper(frame)}, nil
}

func handleCRLDownload(state State, session Session, cmd Command) (State, []Output, error) {
	if !session.Permissions.Has(policy.PermCrl) {
		return fail(state, session.ID, cmd.RequestID, "permission denied: Crl required")
	}
	crl, ok := state.CRLs[cmd.Issuer]
	if !ok {
		return fail(state, session.ID, cmd.RequestID, "no crl on file for issuer")
	}
	frame := wire.Success(cmd.RequestID, state.WireVersion, crl.List.Raw)
	return state, []Output{toSession(session.ID, frame)}, nil
}
