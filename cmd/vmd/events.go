// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/x509"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ukvm-io/vmd/lib/engine"
	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/transport"
)

// The event types below are the only way any goroutine other than
// [Daemon.eventLoop] touches engine state — every session and helper
// feeder goroutine only ever sends one of these on d.events, never
// reads or writes a [engine.State] directly. This is the Go rendition
// of spec.md §5's single-threaded cooperative event loop.

type sessionInitialEvent struct {
	sessionID engine.SessionID
	chain     []*x509.Certificate
	conn      net.Conn
	resp      chan<- initialDecision
}

type initialDecision struct {
	action engine.Action
	err    error
}

type sessionCommandEvent struct {
	sessionID engine.SessionID
	cmd       engine.Command
}

type sessionClosedEvent struct {
	sessionID engine.SessionID
}

type consoleHelperEvent struct{ body []byte }
type logHelperEvent struct{ body []byte }
type statHelperEvent struct{ body []byte }

// helperLostEvent reports that a background feeder's connection to a
// helper socket failed. For console and log this is fatal to the
// daemon (spec.md §7); for stats it only demotes future statistics
// commands to "unavailable."
type helperLostEvent struct {
	which string // "console", "log", "stats"
	err   error
}

type spawnResultEvent struct {
	spawned engine.Spawned
	now     time.Time
}

type processExitedEvent struct {
	id     string
	status process.ExitReason
}

// eventLoop is the single goroutine that owns state. It never performs
// blocking I/O itself beyond writing already-framed output to already-
// connected sockets — see cmd/vmd's daemon.go for where the actually
// blocking work (image prep, hypervisor spawn, process wait, console
// relay) happens on separate goroutines that report back through
// d.events.
func (d *Daemon) eventLoop(ctx context.Context, state engine.State) {
	conns := map[engine.SessionID]net.Conn{}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			switch e := ev.(type) {
			case sessionInitialEvent:
				state = d.onSessionInitial(state, conns, e)
			case sessionCommandEvent:
				state = d.onSessionCommand(state, conns, e)
			case sessionClosedEvent:
				state = engine.HandleDisconnect(state, e.sessionID)
				delete(conns, e.sessionID)
			case consoleHelperEvent:
				next, outputs, unknown, err := engine.HandleConsoleEvent(state, e.body)
				if err != nil {
					d.logger.Warn("malformed console event", "err", err)
					break
				}
				if unknown != "" {
					d.logger.Debug("console line for unknown vm", "vm", unknown)
				}
				state = next
				d.dispatch(conns, outputs)
			case logHelperEvent:
				next, outputs, unknown, err := engine.HandleLogEvent(state, e.body)
				if err != nil {
					d.logger.Warn("malformed log event", "err", err)
					break
				}
				if unknown != "" {
					d.logger.Debug("log line for unknown vm", "vm", unknown)
				}
				state = next
				d.dispatch(conns, outputs)
			case statHelperEvent:
				next, outputs, err := engine.HandleStatEvent(state, e.body)
				if err != nil {
					d.logger.Warn("malformed stats event", "err", err)
					break
				}
				state = next
				d.dispatch(conns, outputs)
			case helperLostEvent:
				if e.which == "stats" {
					d.logger.Warn("stats helper disconnected, demoting statistics requests", "err", e.err)
					state.StatsConn = nil
					continue
				}
				d.logger.Error("helper disconnected, daemon exiting", "helper", e.which, "err", e.err)
				d.fatal <- e.err
				return
			case spawnResultEvent:
				next, outputs := engine.CompleteSpawn(state, e.spawned, e.now)
				state = next
				d.dispatch(conns, outputs)
			case processExitedEvent:
				vm, ok := state.VMs[e.id]
				if !ok {
					break
				}
				next, outputs := engine.HandleShutdown(state, vm, e.status)
				state = next
				d.dispatch(conns, outputs)
			}
		}
	}
}

func (d *Daemon) onSessionInitial(state engine.State, conns map[engine.SessionID]net.Conn, e sessionInitialEvent) engine.State {
	next, outputs, result, err := engine.HandleInitial(state, e.sessionID, e.chain, d.roots, time.Now())
	d.dispatch(conns, outputs)
	if err != nil {
		e.resp <- initialDecision{err: err}
		return state
	}

	switch result.Action {
	case engine.ActionClose:
		killAll(d.logger, result.Revoked)
		e.resp <- initialDecision{action: engine.ActionClose}
	case engine.ActionLoop:
		conns[e.sessionID] = e.conn
		e.resp <- initialDecision{action: engine.ActionLoop}
	case engine.ActionCreate:
		killAll(d.logger, result.Preempted)
		e.resp <- initialDecision{action: engine.ActionCreate}
		go d.spawnVM(*result.VM, e.sessionID)
	}
	return next
}

func (d *Daemon) onSessionCommand(state engine.State, conns map[engine.SessionID]net.Conn, e sessionCommandEvent) engine.State {
	next, outputs, err := engine.HandleCommand(state, e.sessionID, e.cmd)
	if err != nil {
		d.logger.Warn("command handling failed", "session", e.sessionID, "err", err)
		return state
	}
	d.dispatch(conns, outputs)
	return next
}

// dispatch carries out every [engine.Output] a handler returned,
// writing frames to the connection the Kind names. Handlers only ever
// describe outputs; dispatch is the one place they actually happen.
func (d *Daemon) dispatch(conns map[engine.SessionID]net.Conn, outputs []engine.Output) {
	for _, out := range outputs {
		switch out.Kind {
		case engine.ToSession:
			conn, ok := conns[out.Session]
			if !ok {
				continue
			}
			if err := transport.WriteFrame(conn, out.Frame); err != nil {
				d.logger.Warn("writing to session", "session", out.Session, "err", err)
			}
		case engine.ToConsoleHelper:
			if err := transport.WriteFrame(d.consoleConn, out.Frame); err != nil {
				d.logger.Error("writing to console helper", "err", err)
			}
		case engine.ToLogHelper:
			if err := transport.WriteFrame(d.logConn, out.Frame); err != nil {
				d.logger.Error("writing to log helper", "err", err)
			}
		case engine.ToStatsHelper:
			if d.statsConn == nil {
				continue
			}
			if err := transport.WriteFrame(d.statsConn, out.Frame); err != nil {
				d.logger.Warn("writing to stats helper", "err", err)
			}
		case engine.CloseSession:
			if conn, ok := conns[out.Session]; ok {
				conn.Close()
				delete(conns, out.Session)
			}
		case engine.KillVM:
			if err := process.Signal(out.Pid, unix.SIGTERM); err != nil {
				d.logger.Warn("signaling destroyed vm", "pid", out.Pid, "err", err)
			}
		}
	}
}
