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

// helper is the console helper's whole state: which VM ids are
// currently attached, a small ring buffer of recent lines per
// attached id (so a producer that races an attach isn't silently
// dropped), and the single engine connection lines are forwarded to.
//
// cons.sock is spec.md §6's one bidirectional connection from the
// engine; vmd dials it at startup and redials only after a broken
// read, so this helper only ever serves one engine peer at a time.
type helper struct {
	logger *slog.Logger

	mu       sync.Mutex
	attached map[string]*ring.Ring
	engine   net.Conn // nil until the engine connects
}

func newHelper(logger *slog.Logger) *helper {
	return &helper{logger: logger, attached: map[string]*ring.Ring{}}
}

func (h *helper) run(socketPath, ingestPath string) error {
	engineListener, err := listenUnix(socketPath)
	if err != nil {
		return fmt.Errorf("vmd-console: binding %s: %w", socketPath, err)
	}
	defer engineListener.Close()

	ingestListener, err := listenUnix(ingestPath)
	if err != nil {
		return fmt.Errorf("vmd-console: binding %s: %w", ingestPath, err)
	}
	defer ingestListener.Close()

	go h.acceptIngest(ingestListener)

	h.logger.Info("vmd-console listening", "socket", socketPath, "ingest", ingestPath)
	for {
		conn, err := engineListener.Accept()
		if err != nil {
			return fmt.Errorf("vmd-console: accept: %w", err)
		}
		h.serveEngine(conn)
	}
}

// listenUnix removes a stale socket file left over from a prior run
// before binding — Unix listeners fail with "address already in use"
// on a leftover path even when no process holds it.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// serveEngine reads attach/detach commands from the one engine
// connection until it disconnects, then returns so the accept loop
// can wait for a reconnect. Held under h.mu only while swapping
// h.engine; command handling itself needs no lock beyond
// h.attached's own map access.
func (h *helper) serveEngine(conn net.Conn) {
	h.mu.Lock()
	if h.engine != nil {
		h.engine.Close()
	}
	h.engine = conn
	h.mu.Unlock()
	h.logger.Info("engine connected")

	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, transport.ErrEOF) {
				h.logger.Warn("engine read failed", "err", err)
			}
			h.mu.Lock()
			if h.engine == conn {
				h.engine = nil
			}
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.handleEngineFrame(frame)
	}
}

func (h *helper) handleEngineFrame(frame wire.Frame) {
	id, _, err := wire.DecodeEvent(frame.Body)
	if err != nil {
		h.logger.Warn("malformed attach/detach frame", "err", err)
		return
	}
	switch frame.Header.Tag {
	case wire.TagAttach:
		h.mu.Lock()
		if _, ok := h.attached[id]; !ok {
			h.attached[id] = ring.New(ring.DefaultSize)
		}
		h.mu.Unlock()
		h.logger.Debug("attached", "vm", id)
	case wire.TagDetach:
		h.mu.Lock()
		delete(h.attached, id)
		h.mu.Unlock()
		h.logger.Debug("detached", "vm", id)
	default:
		h.logger.Warn("unexpected tag from engine", "tag", frame.Header.Tag)
	}
}

// acceptIngest serves the ingest socket: any local producer may
// connect and push console-line events (TagConsoleLine frames) for an
// id this helper currently has attached. Lines for a detached or
// never-attached id are dropped with a debug log, mirroring spec.md
// §4.5's "unknown ids are dropped with a debug log, not an error."
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
		if frame.Header.Tag != wire.TagConsoleLine {
			continue
		}
		h.push(frame.Body)
	}
}

func (h *helper) push(body []byte) {
	id, line, err := wire.DecodeEvent(body)
	if err != nil {
		h.logger.Warn("malformed console line", "err", err)
		return
	}

	h.mu.Lock()
	buf, attached := h.attached[id]
	engineConn := h.engine
	h.mu.Unlock()

	if !attached {
		h.logger.Debug("console line for unattached vm", "vm", id)
		return
	}
	buf.Append(time.Now(), line)

	if engineConn == nil {
		return
	}
	frame := wire.NewFrame(wire.Version, wire.TagConsoleLine, body)
	if err := transport.WriteFrame(engineConn, frame); err != nil {
		h.logger.Warn("writing console line to engine", "err", err)
	}
}
