// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/ukvm-io/vmd/lib/engine"
	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// handleSession drives one accepted TLS connection end to end: the
// handshake, the chain-of-trust+CRL authentication handled by
// [engine.HandleInitial], and — for sessions classified [engine.ActionLoop]
// — the command loop for the rest of the connection's life.
//
// Unix errors, TLS failures, and unexpected exceptions here are logged
// and this goroutine unwinds; the accept loop itself is unaffected,
// per spec.md §4.6.
func (d *Daemon) handleSession(ctx context.Context, sessionID engine.SessionID, conn *tls.Conn) {
	defer conn.Close()

	if err := conn.HandshakeContext(ctx); err != nil {
		d.logger.Info("tls handshake failed", "err", err)
		return
	}

	chain := conn.ConnectionState().PeerCertificates
	if len(chain) == 0 {
		d.logger.Info("session presented no client certificate")
		return
	}

	resp := make(chan initialDecision, 1)
	d.events <- sessionInitialEvent{sessionID: sessionID, chain: chain, conn: conn, resp: resp}
	decision := <-resp
	if decision.err != nil {
		d.logger.Info("session rejected", "err", decision.err)
		// Policy and conflict errors get a typed failure reply before
		// the session closes, per spec.md §7 — this is the only path
		// by which, e.g., a resource-budget violation's human-readable
		// message ("memory: 200 > 128 remaining") reaches the client
		// that presented the offending VM certificate. Cryptographic
		// errors (chain does not verify, revoked) close silently: the
		// handshake itself is untrusted at that point, so nothing is
		// owed to whoever is on the other end.
		var engineErr *engine.Error
		if errors.As(decision.err, &engineErr) && (engineErr.Kind == engine.KindPolicy || engineErr.Kind == engine.KindConflict) {
			reply := wire.Fail(engineErr.Message, 0, wire.Version)
			if werr := transport.WriteFrame(conn, reply); werr != nil {
				d.logger.Info("session write failed", "session", sessionID, "err", werr)
			}
		}
		return
	}

	if decision.action != engine.ActionLoop {
		return
	}

	d.commandLoop(sessionID, conn)
}

// commandLoop reads framed commands from conn until it errors or the
// peer disconnects, handing each one to the event loop. Replies are
// written by [Daemon.dispatch], not here, since handleStatistics's
// reply can arrive asynchronously from the stats helper long after the
// command frame itself was read.
func (d *Daemon) commandLoop(sessionID engine.SessionID, conn *tls.Conn) {
	defer func() { d.events <- sessionClosedEvent{sessionID: sessionID} }()

	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, transport.ErrEOF) {
				d.logger.Info("session read failed", "session", sessionID, "err", err)
			}
			return
		}
		cmd, err := decodeCommand(frame)
		if err != nil {
			reply := wire.Fail(err.Error(), 0, wire.Version)
			if werr := transport.WriteFrame(conn, reply); werr != nil {
				d.logger.Info("session write failed", "session", sessionID, "err", werr)
				return
			}
			continue
		}
		d.events <- sessionCommandEvent{sessionID: sessionID, cmd: cmd}
	}
}

// decodeCommand parses a frame from the command loop into an
// [engine.Command]. Every command tag folds a request id as the first
// four bytes of its body (see lib/wire's package doc); the remainder
// is a UTF-8 string naming the glob, vm id, or CRL issuer the tag
// expects.
func decodeCommand(frame wire.Frame) (engine.Command, error) {
	id, payload, err := wire.DecodeRequestID(frame.Body)
	if err != nil {
		return engine.Command{}, fmt.Errorf("decoding command: %w", err)
	}

	cmd := engine.Command{Tag: frame.Header.Tag, RequestID: id}
	switch frame.Header.Tag {
	case wire.TagInfo:
		cmd.IDGlob = string(payload)
	case wire.TagDestroy, wire.TagConsole, wire.TagLog, wire.TagStatistics:
		cmd.ID = string(payload)
	case wire.TagCrl:
		cmd.Issuer = string(payload)
	default:
		return engine.Command{}, fmt.Errorf("unknown command tag %v", frame.Header.Tag)
	}
	return cmd, nil
}
