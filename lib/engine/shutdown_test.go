// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"

	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/vmid"
	"github.com/ukvm-io/vmd/lib/wire"
)

func TestHandleShutdownNotifiesSubscribersAndDropsVM(t *testing.T) {
	state := NewState("", discardConn{}, discardConn{}, discardConn{})
	id, _ := vmid.Parse("tenant/vm1")
	vm := RunningVM{ID: id, Config: baseVMConfig(), Pid: 4242}
	state = state.withVM("tenant/vm1", vm)

	consoleSub := newSession(1, id, 0, "issuer")
	consoleSub.Console["tenant/vm1"] = true
	state = state.withSession(consoleSub)

	logSub := newSession(2, id, 0, "issuer")
	logSub.Log["tenant/vm1"] = true
	state = state.withSession(logSub)

	next, outputs := HandleShutdown(state, vm, process.ExitReason{Kind: process.Exited, Code: 0})

	if _, ok := next.VMs["tenant/vm1"]; ok {
		t.Error("expected vm removed from state")
	}

	var sawRemovePid, sawDetach, sawLog, sawConsole bool
	for _, out := range outputs {
		switch {
		case out.Kind == ToStatsHelper && out.Frame.Header.Tag == wire.TagRemovePid:
			sawRemovePid = true
			gotID, gotPid, err := wire.DecodePidCommand(out.Frame.Body)
			if err != nil {
				t.Fatalf("DecodePidCommand: %v", err)
			}
			if gotID != "tenant/vm1" || gotPid != 4242 {
				t.Errorf("remove-pid body = (%q, %d), want (%q, %d)", gotID, gotPid, "tenant/vm1", 4242)
			}
		case out.Kind == ToConsoleHelper && out.Frame.Header.Tag == wire.TagDetach:
			sawDetach = true
		case out.Kind == ToSession && out.Session == 2 && out.Frame.Header.Tag == wire.TagLogLine:
			sawLog = true
		case out.Kind == ToSession && out.Session == 1 && out.Frame.Header.Tag == wire.TagConsoleLine:
			sawConsole = true
		}
	}
	if !sawRemovePid {
		t.Error("expected a remove-pid output to the stats helper")
	}
	if !sawDetach {
		t.Error("expected a detach output to the console helper")
	}
	if !sawLog {
		t.Error("expected the log subscriber to receive the terminal log line")
	}
	if !sawConsole {
		t.Error("expected the console subscriber to receive the terminal line")
	}
}

func TestHandleShutdownWithoutStatsHelper(t *testing.T) {
	state := NewState("", discardConn{}, discardConn{}, nil)
	id, _ := vmid.Parse("tenant/vm1")
	vm := RunningVM{ID: id, Config: baseVMConfig(), Pid: 1}
	state = state.withVM("tenant/vm1", vm)

	_, outputs := HandleShutdown(state, vm, process.ExitReason{Kind: process.Signalled, Code: 9})
	for _, out := range outputs {
		if out.Kind == ToStatsHelper {
			t.Error("expected no stats output when no stats helper is connected")
		}
	}
}

func TestHandleDisconnectRemovesSession(t *testing.T) {
	state := NewState("", discardConn{}, discardConn{}, nil)
	id, _ := vmid.Parse("tenant")
	session := newSession(5, id, 0, "issuer")
	state = state.withSession(session)

	next := HandleDisconnect(state, 5)
	if _, ok := next.Sessions[5]; ok {
		t.Error("expected session 5 removed")
	}
}

func TestHandleDisconnectUnknownSessionIsNoop(t *testing.T) {
	state := NewState("", discardConn{}, discardConn{}, nil)
	next := HandleDisconnect(state, 99)
	if len(next.Sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(next.Sessions))
	}
}
