// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/ukvm-io/vmd/lib/engine"
	"github.com/ukvm-io/vmd/lib/testutil"
	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// TestDispatchKillVMSignalsProcess exercises the daemon-loop half of
// destroy's kill instruction end to end: [Daemon.dispatch] must turn
// an [engine.KillVM] output into an actual SIGTERM on the named pid,
// per spec.md §4.5's "send kill to pid, rely on exit callback for
// cleanup."
func TestDispatchKillVMSignalsProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting sleep: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	d := testDaemon(t)
	d.dispatch(map[engine.SessionID]net.Conn{}, []engine.Output{
		{Kind: engine.KillVM, Pid: cmd.Process.Pid},
	})

	testutil.RequireReceive(t, done, 5*time.Second, "waiting for sleep to exit after SIGTERM")

	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() || status.Signal() != syscall.SIGTERM {
		t.Fatalf("expected process to be signalled with SIGTERM, got %v", cmd.ProcessState)
	}
}

// TestDispatchToSessionWritesFrame is the end-to-end framed-session
// test promised for the C7 daemon loop: dispatch must deliver a
// ToSession output onto the session's actual connection, not just
// hand a frame to a mock.
func TestDispatchToSessionWritesFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := testDaemon(t)
	conns := map[engine.SessionID]net.Conn{1: server}
	frame := wire.Success(7, wire.Version, []byte("ok"))

	go d.dispatch(conns, []engine.Output{{Kind: engine.ToSession, Session: 1, Frame: frame}})

	got, err := transport.ReadFrame(client)
	if err != nil {
		t.Fatalf("reading dispatched frame: %v", err)
	}
	if got.Header.Tag != wire.TagSuccess || string(got.Body) != "ok" {
		t.Fatalf("got %+v, want the dispatched success frame", got)
	}
}

// TestDispatchCloseSessionClosesConn checks that a CloseSession output
// both closes the connection and forgets it, so a later output
// addressed to the same session id is silently dropped rather than
// written to a stale entry.
func TestDispatchCloseSessionClosesConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	d := testDaemon(t)
	conns := map[engine.SessionID]net.Conn{1: server}
	d.dispatch(conns, []engine.Output{{Kind: engine.CloseSession, Session: 1}})

	if _, ok := conns[1]; ok {
		t.Error("expected CloseSession to remove the session from conns")
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := transport.ReadFrame(client)
		readErr <- err
	}()
	testutil.RequireReceive(t, readErr, 5*time.Second, "expected read on the closed pipe to fail")
}
