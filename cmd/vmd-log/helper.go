// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ukvm-io/vmd/lib/ring"
	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// helper relays ingested log lines onto the single engine connection,
// keeping a per-vm [ring.Ring] so a "since T" backfill is possible for
// an id whose subscriber attaches after some lines already arrived —
// spec.md §5's "a subscriber added after an event missed that event
// (no replay except the log ring, which offers an explicit since T
// query)." The engine itself has no such query in its wire protocol
// (only the console/log subscribe commands, which start delivery from
// the point of subscription); this ring exists so a future replay
// command, or an operator inspecting this process directly, has
// something to query against without re-deriving spec.md §4.3 here.
type helper struct {
	logger   *slog.Logger
	ringSize int

	mu     sync.Mutex
	rings  map[string]*ring.Ring
	engine net.Conn
}

func newHelper(logger *slog.Logger, ringSize int) *helper {
	return &helper{logger: logger, ringSize: ringSize, rings: map[string]*ring.Ring{}}
}

func (h *helper) run(socketPath, ingestPath string) error {
	engineListener, err := listenUnix(socketPath)
	if err != nil {
		return fmt.Errorf("vmd-log: binding %s: %w", socketPath, err)
	}
	defer engineListener.Close()

	ingestListener, err := listenUnix(ingestPath)
	if err != nil {
		return fmt.Errorf("vmd-log: binding %s: %w", ingestPath, err)
	}
	defer ingestListener.Close()

	go h.acceptIngest(ingestListener)

	h.logger.Info("vmd-log listening", "socket", socketPath, "ingest", ingestPath)
	for {
		conn, err := engineListener.Accept()
		if err != nil {
			return fmt.Errorf("vmd-log: accept: %w", err)
		}
		h.serveEngine(conn)
	}
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// serveEngine holds the one engine connection open only to detect
// disconnects — log.sock carries no inbound commands per spec.md §6,
// so nothing is ever read from it besides EOF/error.
func (h *helper) serveEngine(conn net.Conn) {
	h.mu.Lock()
	if h.engine != nil {
		h.engine.Close()
	}
	h.engine = conn
	h.mu.Unlock()
	h.logger.Info("engine connected")

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		h.logger.Info("engine connection closed", "err", err)
	}
	h.mu.Lock()
	if h.engine == conn {
		h.engine = nil
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *helper) acceptIngest(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			h.logger.Error("ingest accept failed", "err", err)
			return
		}
		go h.serveIngest(conn)
	}
}

func (h *helper) serveIngest(conn net.Conn) {
	defer conn.Close()
	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, transport.ErrEOF) {
				h.logger.Debug("ingest read failed", "err", err)
			}
			return
		}
		if frame.Header.Tag != wire.TagLogLine {
			continue
		}
		h.push(frame.Body)
	}
}

func (h *helper) push(body []byte) {
	id, line, err := wire.DecodeEvent(body)
	if err != nil {
		h.logger.Warn("malformed log line", "err", err)
		return
	}

	h.mu.Lock()
	buf, ok := h.rings[id]
	if !ok {
		buf = ring.New(h.ringSize)
		h.rings[id] = buf
	}
	engineConn := h.engine
	h.mu.Unlock()

	buf.Append(time.Now(), line)

	if engineConn == nil {
		return
	}
	frame := wire.NewFrame(wire.Version, wire.TagLogLine, body)
	if err := transport.WriteFrame(engineConn, frame); err != nil {
		h.logger.Warn("writing log line to engine", "err", err)
	}
}
