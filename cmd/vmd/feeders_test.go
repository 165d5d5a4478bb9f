// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ukvm-io/vmd/lib/testutil"
	"github.com/ukvm-io/vmd/lib/wire"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	return &Daemon{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		events: make(chan any, 8),
	}
}

// listenHelperSocket binds a Unix listener the way a real console/log/
// stats helper would, at a short path under [testutil.SocketDir].
func listenHelperSocket(t *testing.T) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(testutil.SocketDir(t), "helper.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listening on %s: %v", path, err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func writeTestFrame(t *testing.T, conn net.Conn, frame wire.Frame) {
	t.Helper()
	buf := make([]byte, wire.HeaderSize+len(frame.Body))
	frame.Header.Encode(buf[:wire.HeaderSize])
	copy(buf[wire.HeaderSize:], frame.Body)
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
}

func TestFeedForwardsConsoleFrames(t *testing.T) {
	listener, path := listenHelperSocket(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := dialHelperSocket(path)
	if err != nil {
		t.Fatalf("dialHelperSocket: %v", err)
	}
	server := testutil.RequireReceive(t, accepted, 5*time.Second, "accepting feeder's connection")
	defer server.Close()

	d := testDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.feed(ctx, "console", client, wire.TagConsoleLine, func(body []byte) any {
		return consoleHelperEvent{body: body}
	})

	body := wire.EncodeEvent(testutil.UniqueID("tenant/vm"), []byte("booted\n"))
	writeTestFrame(t, server, wire.NewFrame(wire.Version, wire.TagConsoleLine, body))

	ev := testutil.RequireReceive(t, d.events, 5*time.Second, "waiting for consoleHelperEvent")
	consoleEv, ok := ev.(consoleHelperEvent)
	if !ok {
		t.Fatalf("expected consoleHelperEvent, got %T", ev)
	}
	if string(consoleEv.body) != string(body) {
		t.Errorf("body = %q, want %q", consoleEv.body, body)
	}
}

func TestFeedIgnoresUnexpectedTagWithoutReconnecting(t *testing.T) {
	listener, path := listenHelperSocket(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := dialHelperSocket(path)
	if err != nil {
		t.Fatalf("dialHelperSocket: %v", err)
	}
	server := testutil.RequireReceive(t, accepted, 5*time.Second, "accepting feeder's connection")
	defer server.Close()

	d := testDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.feed(ctx, "log", client, wire.TagLogLine, func(body []byte) any {
		return logHelperEvent{body: body}
	})

	// A frame carrying the wrong tag must be dropped in place, not
	// treated as a dead connection — the same server connection keeps
	// working for the next, correctly-tagged frame with no redial in
	// between.
	writeTestFrame(t, server, wire.NewFrame(wire.Version, wire.TagStatsSample, nil))
	body := wire.EncodeEvent(testutil.UniqueID("tenant/vm"), []byte("line\n"))
	writeTestFrame(t, server, wire.NewFrame(wire.Version, wire.TagLogLine, body))

	ev := testutil.RequireReceive(t, d.events, 5*time.Second, "waiting for logHelperEvent")
	if _, ok := ev.(logHelperEvent); !ok {
		t.Fatalf("expected logHelperEvent after the bad tag was dropped, got %T", ev)
	}
}

func TestFeedReconnectsAfterHelperRestart(t *testing.T) {
	listener, path := listenHelperSocket(t)
	accepted := make(chan net.Conn, 2)
	go func() {
		for i := 0; i < 2; i++ {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	client, err := dialHelperSocket(path)
	if err != nil {
		t.Fatalf("dialHelperSocket: %v", err)
	}

	d := testDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.feed(ctx, "stats", client, wire.TagStatsSample, func(body []byte) any {
		return statHelperEvent{body: body}
	})

	first := testutil.RequireReceive(t, accepted, 5*time.Second, "accepting first connection")
	first.Close() // simulate the stats helper process restarting

	// The feeder now redials with backoff; a second listener.Accept()
	// stands in for the restarted helper coming back up.
	second := testutil.RequireReceive(t, accepted, 10*time.Second, "accepting reconnect")
	defer second.Close()

	body := wire.EncodeEvent(testutil.UniqueID("tenant/vm"), []byte{})
	writeTestFrame(t, second, wire.NewFrame(wire.Version, wire.TagStatsSample, body))

	ev := testutil.RequireReceive(t, d.events, 10*time.Second, "waiting for statHelperEvent after reconnect")
	if _, ok := ev.(statHelperEvent); !ok {
		t.Fatalf("expected statHelperEvent, got %T", ev)
	}
}
