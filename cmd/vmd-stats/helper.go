// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ukvm-io/vmd/lib/codec"
	"github.com/ukvm-io/vmd/lib/config"
	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// helper tracks the pids the engine has registered and answers
// one-shot statistics requests from the most recent poll, per spec.md
// §4.5/§6: "engine registers/removes pids; polls every 10 s" and
// "forward a one-shot request to the stats helper and relay the reply."
type helper struct {
	logger  *slog.Logger
	cfg     *config.Config
	backend backend

	mu      sync.Mutex
	pids    map[string]int    // vm id -> pid
	samples map[string]sample // vm id -> most recent poll
}

func newHelper(logger *slog.Logger, cfg *config.Config, b backend) *helper {
	return &helper{logger: logger, cfg: cfg, backend: b, pids: map[string]int{}, samples: map[string]sample{}}
}

func (h *helper) run(socketPath string) error {
	listener, err := listenUnix(socketPath)
	if err != nil {
		return fmt.Errorf("vmd-stats: binding %s: %w", socketPath, err)
	}
	defer listener.Close()

	go h.pollLoop()

	h.logger.Info("vmd-stats listening", "socket", socketPath, "backend", h.backend.Name(), "interval", h.cfg.Interval())
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("vmd-stats: accept: %w", err)
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

func (h *helper) serveEngine(conn net.Conn) {
	defer conn.Close()
	h.logger.Info("engine connected")
	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, transport.ErrEOF) {
				h.logger.Warn("engine read failed", "err", err)
			}
			return
		}
		h.handleFrame(conn, frame)
	}
}

func (h *helper) handleFrame(conn net.Conn, frame wire.Frame) {
	switch frame.Header.Tag {
	case wire.TagAddPid:
		id, pid, err := wire.DecodePidCommand(frame.Body)
		if err != nil {
			h.logger.Warn("malformed add-pid command", "err", err)
			return
		}
		h.mu.Lock()
		h.pids[id] = pid
		h.mu.Unlock()
		h.logger.Debug("registered pid", "vm", id, "pid", pid)
	case wire.TagRemovePid:
		id, _, err := wire.DecodePidCommand(frame.Body)
		if err != nil {
			h.logger.Warn("malformed remove-pid command", "err", err)
			return
		}
		h.mu.Lock()
		delete(h.pids, id)
		delete(h.samples, id)
		h.mu.Unlock()
		h.logger.Debug("removed pid", "vm", id)
	case wire.TagStatistics:
		h.handleStatistics(conn, frame.Body)
	default:
		h.logger.Warn("unexpected tag from engine", "tag", frame.Header.Tag)
	}
}

// handleStatistics answers a one-shot request with the most recent
// poll for the named vm id, replying with the same request id folded
// in — [engine.HandleStatEvent] correlates purely on that id, per
// lib/wire's package doc.
func (h *helper) handleStatistics(conn net.Conn, body []byte) {
	requestID, idBytes, err := wire.DecodeRequestID(body)
	if err != nil {
		h.logger.Warn("malformed statistics request", "err", err)
		return
	}
	id := string(idBytes)

	h.mu.Lock()
	s, ok := h.samples[id]
	h.mu.Unlock()
	if !ok {
		// No sample yet (VM just started, before the first poll tick)
		// — a zeroed sample still answers the request id so the
		// caller isn't left hanging; a zeroed sample is a legitimate
		// early reading, not an error.
		s = sample{}
	}

	payload, err := codec.Marshal(s)
	if err != nil {
		h.logger.Error("encoding stats sample", "err", err)
		return
	}
	frame := wire.NewFrame(wire.Version, wire.TagStatsSample, wire.EncodeRequestID(requestID, payload))
	if err := transport.WriteFrame(conn, frame); err != nil {
		h.logger.Warn("writing statistics reply", "err", err)
	}
}

// pollLoop refreshes every registered pid's sample on cfg.Interval(),
// jittered by up to cfg.Jitter() so that many vmd-stats processes on
// one host don't all wake in lockstep. Each tick is tagged with a
// uuid purely for correlating this helper's own poll-cycle log lines
// across a long-running process — it never crosses the wire.
func (h *helper) pollLoop() {
	interval := h.cfg.Interval()
	jitter := h.cfg.Jitter()
	for {
		if jitter > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(jitter))))
		}
		tick := uuid.New()
		h.mu.Lock()
		pids := make(map[string]int, len(h.pids))
		for id, pid := range h.pids {
			pids[id] = pid
		}
		h.mu.Unlock()

		for id, pid := range pids {
			s, err := h.backend.Sample(pid)
			if err != nil {
				h.logger.Debug("sampling pid failed", "vm", id, "pid", pid, "tick", tick, "err", err)
				continue
			}
			h.mu.Lock()
			h.samples[id] = s
			h.mu.Unlock()
		}
		time.Sleep(interval)
	}
}
