// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// feederInitialBackoff and feederMaxBackoff bound the exponential
// backoff a feeder uses while redialing a broken helper socket: 1s
// doubling to a 30s cap, the schedule cmd/bureau-telemetry-relay's
// batch shipper uses for its own reconnect loop.
const (
	feederInitialBackoff = 1 * time.Second
	feederMaxBackoff     = 30 * time.Second

	// feederMaxReconnects bounds how many consecutive redial failures
	// a feeder tolerates before giving up and reporting
	// [helperLostEvent]. spec.md §4.6 says feeders "retry forever on
	// error," but §7 also says a console or log helper disconnect "is
	// fatal ... and the daemon exits non-zero" — read together, a
	// helper that never comes back must still surface as fatal
	// eventually. Ten attempts (about three minutes of backoff: 1s
	// doubling to the 30s cap) treats a transient restart as
	// recoverable while still giving up on a helper that is
	// genuinely gone.
	feederMaxReconnects = 10
)

// helperSocket is a Unix domain connection to one of the daemon's
// helper processes that can be redialed after a broken read. The
// feeder goroutine owns the read side and drives reconnects; the event
// loop's dispatch writes command frames through [helperSocket.Write]
// from a different goroutine, so the live connection is guarded by a
// mutex instead of read directly.
type helperSocket struct {
	path string

	mu   sync.Mutex
	conn net.Conn
}

func dialHelperSocket(path string) (*helperSocket, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	return &helperSocket{path: path, conn: conn}, nil
}

// Write implements [engine.HelperConn].
func (h *helperSocket) Write(p []byte) (int, error) {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	return conn.Write(p)
}

func (h *helperSocket) current() net.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// reconnect closes the stale connection and redials path with
// exponential backoff, up to [feederMaxReconnects] attempts. It
// returns false if ctx is canceled or the attempt budget is exhausted
// before a redial succeeds.
func (h *helperSocket) reconnect(ctx context.Context, logger *slog.Logger, which string) bool {
	h.mu.Lock()
	h.conn.Close()
	h.mu.Unlock()

	backoff := feederInitialBackoff
	for attempt := 1; attempt <= feederMaxReconnects; attempt++ {
		conn, err := net.Dial("unix", h.path)
		if err == nil {
			h.mu.Lock()
			h.conn = conn
			h.mu.Unlock()
			return true
		}
		logger.Debug("feeder retry backoff", "helper", which, "attempt", attempt, "backoff", backoff, "err", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff *= 2
		if backoff > feederMaxBackoff {
			backoff = feederMaxBackoff
		}
	}
	return false
}

// feedConsole, feedLog, and feedStats are the three background
// feeders spec.md §4.6 requires: each loops forever reading frames off
// its helper connection and forwarding them to the event loop. A
// frame that decodes but carries the wrong tag is logged and dropped
// without disturbing the connection — it is not evidence the helper
// is gone. A read failure (EOF, a torn frame, a malformed header)
// redials the helper's socket with backoff per spec.md §7's "on a
// helper feeder they are logged and the feeder retries"; only once
// [helperSocket.reconnect] gives up does the feeder report
// [helperLostEvent], which the event loop treats as fatal for
// console/log and a demotion for stats.

func (d *Daemon) feedConsole(ctx context.Context) {
	d.feed(ctx, "console", d.consoleConn, wire.TagConsoleLine, func(body []byte) any {
		return consoleHelperEvent{body: body}
	})
}

func (d *Daemon) feedLog(ctx context.Context) {
	d.feed(ctx, "log", d.logConn, wire.TagLogLine, func(body []byte) any {
		return logHelperEvent{body: body}
	})
}

func (d *Daemon) feedStats(ctx context.Context) {
	d.feed(ctx, "stats", d.statsConn, wire.TagStatsSample, func(body []byte) any {
		return statHelperEvent{body: body}
	})
}

func (d *Daemon) feed(ctx context.Context, which string, h *helperSocket, wantTag wire.Tag, toEvent func(body []byte) any) {
	for {
		frame, err := transport.ReadFrame(h.current())
		if err != nil {
			d.logger.Warn("helper feeder read failed, reconnecting", "helper", which, "err", err)
			if !h.reconnect(ctx, d.logger, which) {
				d.events <- helperLostEvent{which: which, err: err}
				return
			}
			continue
		}
		if frame.Header.Tag != wantTag {
			d.logger.Debug("feeder dropped frame with unexpected tag", "helper", which, "tag", frame.Header.Tag)
			continue
		}
		d.events <- toEvent(frame.Body)
	}
}
