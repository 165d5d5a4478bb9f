// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"

	"github.com/ukvm-io/vmd/lib/codec"
	"github.com/ukvm-io/vmd/lib/policy"
	"github.com/ukvm-io/vmd/lib/vmid"
	"github.com/ukvm-io/vmd/lib/wire"
)

func newTestSession(id SessionID, prefix string, perms policy.Permission) Session {
	p, _ := vmid.Parse(prefix)
	return newSession(id, p, perms, "issuer")
}

func stateWithSession(session Session) State {
	state := NewState("", discardConn{}, discardConn{}, discardConn{})
	return state.withSession(session)
}

func TestHandleCommandInfoFiltersBySessionPrefix(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermInfo)
	state := stateWithSession(session)

	visibleID, _ := vmid.Parse("tenant/vm1")
	hiddenID, _ := vmid.Parse("other/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: visibleID, Config: baseVMConfig()})
	state = state.withVM("other/vm1", RunningVM{ID: hiddenID, Config: baseVMConfig()})

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagInfo, RequestID: 7, IDGlob: "*/*"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Frame.Header.Tag != wire.TagSuccess {
		t.Fatalf("expected success reply, got tag %v", outputs[0].Frame.Header.Tag)
	}
	_, payload, err := wire.DecodeRequestID(outputs[0].Frame.Body)
	if err != nil {
		t.Fatalf("DecodeRequestID: %v", err)
	}
	var entries []infoEntry
	if err := codec.Unmarshal(payload, &entries); err != nil {
		t.Fatalf("decoding info reply: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "tenant/vm1" {
		t.Errorf("info reply = %+v, want only tenant/vm1", entries)
	}
}

func TestHandleCommandInfoRequiresPermission(t *testing.T) {
	session := newTestSession(1, "tenant", 0)
	state := stateWithSession(session)

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagInfo, RequestID: 1, IDGlob: "*"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Frame.Header.Tag != wire.TagFailure {
		t.Fatalf("expected a failure reply, got %+v", outputs)
	}
}

func TestHandleCommandDestroyRequiresOwnershipOrCreate(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermForceCreate) // no Create, wrong prefix
	state := stateWithSession(session)
	vmID, _ := vmid.Parse("other/vm1")
	state = state.withVM("other/vm1", RunningVM{ID: vmID, Config: baseVMConfig(), Pid: 1})

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagDestroy, RequestID: 2, ID: "other/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Frame.Header.Tag != wire.TagFailure {
		t.Fatalf("expected permission denied with no kill instruction, got %+v", outputs)
	}
}

func TestHandleCommandDestroyOwnPrefixWithForceCreate(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermForceCreate)
	state := stateWithSession(session)
	vmID, _ := vmid.Parse("tenant/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: vmID, Config: baseVMConfig(), Pid: 1})

	next, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagDestroy, RequestID: 2, ID: "tenant/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 2 || outputs[0].Frame.Header.Tag != wire.TagSuccess {
		t.Fatalf("expected success reply plus kill, got %+v", outputs)
	}
	if _, ok := next.VMs["tenant/vm1"]; !ok {
		t.Error("destroy ack should not itself remove the VM; HandleShutdown does")
	}
}

func TestHandleCommandDestroySignalsPid(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermCreate)
	state := stateWithSession(session)
	vmID, _ := vmid.Parse("tenant/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: vmID, Config: baseVMConfig(), Pid: 4242})

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagDestroy, RequestID: 2, ID: "tenant/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected a session reply and a kill instruction, got %+v", outputs)
	}
	if outputs[0].Kind != ToSession || outputs[0].Frame.Header.Tag != wire.TagSuccess {
		t.Fatalf("expected the first output to be the success reply, got %+v", outputs[0])
	}
	if outputs[1].Kind != KillVM || outputs[1].Pid != 4242 {
		t.Fatalf("expected KillVM{Pid: 4242}, got %+v", outputs[1])
	}
}

func TestHandleCommandSubscribeConsole(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermConsole)
	state := stateWithSession(session)
	vmID, _ := vmid.Parse("tenant/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: vmID, Config: baseVMConfig()})

	next, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagConsole, RequestID: 3, ID: "tenant/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Frame.Header.Tag != wire.TagSuccess {
		t.Fatalf("expected success reply, got %+v", outputs)
	}
	if !next.Sessions[1].Console["tenant/vm1"] {
		t.Error("expected session subscribed to console of tenant/vm1")
	}
}

func TestHandleCommandStatisticsRegistersPending(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermStatistics)
	state := stateWithSession(session)
	vmID, _ := vmid.Parse("tenant/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: vmID, Config: baseVMConfig()})

	next, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagStatistics, RequestID: 9, ID: "tenant/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Kind != ToStatsHelper {
		t.Fatalf("expected a single ToStatsHelper output, got %+v", outputs)
	}
	if got, ok := next.PendingStats[9]; !ok || got != 1 {
		t.Errorf("PendingStats[9] = (%v, %v), want (1, true)", got, ok)
	}
}

func TestHandleCommandStatisticsWithoutHelperFails(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermStatistics)
	state := NewState("", discardConn{}, discardConn{}, nil).withSession(session)
	vmID, _ := vmid.Parse("tenant/vm1")
	state = state.withVM("tenant/vm1", RunningVM{ID: vmID, Config: baseVMConfig()})

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagStatistics, RequestID: 9, ID: "tenant/vm1"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Frame.Header.Tag != wire.TagFailure {
		t.Fatalf("expected failure reply when no stats helper connected, got %+v", outputs)
	}
}

func TestHandleCommandCRLDownload(t *testing.T) {
	session := newTestSession(1, "tenant", policy.PermCrl)
	state := stateWithSession(session)

	_, outputs, err := HandleCommand(state, 1, Command{Tag: wire.TagCrl, RequestID: 1, Issuer: "tenant"})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Frame.Header.Tag != wire.TagFailure {
		t.Fatalf("expected failure for unknown issuer, got %+v", outputs)
	}
}
