// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ukvm-io/vmd/lib/engine"
	"github.com/ukvm-io/vmd/lib/image"
	"github.com/ukvm-io/vmd/lib/process"
	"github.com/ukvm-io/vmd/lib/spawn"
	"github.com/ukvm-io/vmd/lib/wire"
)

// tcpPort is the fixed TLS listener port, spec.md §6's "TCP/1025."
const tcpPort = 1025

const (
	consoleSocketName = "cons.sock"
	logSocketName     = "log.sock"
	statsSocketName   = "stat.sock"
)

// Config is everything [NewDaemon] needs to bring up one vmd process.
type Config struct {
	WorkingDir       string
	CACertPath       string
	CertPath         string
	KeyPath          string
	HypervisorBinary string
	Logger           *slog.Logger
}

// Daemon is the C7 daemon loop of spec.md §4.6: it owns the three
// helper connections, the TLS listener, and the channel every session
// and helper feeder goroutine funnels events through to the single
// goroutine that holds the authoritative [engine.State].
type Daemon struct {
	cfg        Config
	logger     *slog.Logger
	tlsConfig  *tls.Config
	roots      *x509.CertPool
	hypervisor spawn.Hypervisor

	consoleConn *helperSocket
	logConn     *helperSocket
	statsConn   *helperSocket // nil if the stats helper is not present

	events chan any
	// fatal carries the error that ends the daemon loop: a console or
	// log helper disconnect (spec.md §7), or listener bind failure.
	fatal chan error
}

// NewDaemon loads the daemon's TLS identity and trust root, dials the
// console and log helper sockets (required) and attempts the stats
// socket (optional), and returns a [Daemon] ready for [Daemon.Run].
func NewDaemon(cfg Config) (*Daemon, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}

	roots, err := loadSingleCA(cfg.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("loading CA certificate: %w", err)
	}

	consoleConn, err := dialHelperSocket(filepath.Join(cfg.WorkingDir, consoleSocketName))
	if err != nil {
		return nil, fmt.Errorf("connecting to console helper: %w", err)
	}
	logConn, err := dialHelperSocket(filepath.Join(cfg.WorkingDir, logSocketName))
	if err != nil {
		consoleConn.current().Close()
		return nil, fmt.Errorf("connecting to log helper: %w", err)
	}
	statsConn, err := dialHelperSocket(filepath.Join(cfg.WorkingDir, statsSocketName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, syscall.ENOENT) {
			consoleConn.current().Close()
			logConn.current().Close()
			return nil, fmt.Errorf("connecting to stats helper: %w", err)
		}
		statsConn = nil
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    roots,
		// The engine re-verifies the presented chain itself against a
		// live CRL snapshot (lib/engine's verifyChain), so the TLS
		// layer only collects the chain — it does not reject it.
		ClientAuth: tls.RequireAnyClientCert,
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
		// Renegotiation governs the client side of Go's crypto/tls;
		// servers accept a peer's secure renegotiation attempt (RFC
		// 5746) regardless of this setting. It is set here for
		// symmetry with spec.md §4.6's "renegotiation enabled" — see
		// DESIGN.md for why vmd does not attempt a true TLS-level
		// renegotiation and instead re-runs chain+CRL verification in
		// [engine.HandleInitial] immediately after the handshake.
		Renegotiation: tls.RenegotiateFreelyAsClient,
	}

	return &Daemon{
		cfg:         cfg,
		logger:      cfg.Logger,
		tlsConfig:   tlsConfig,
		roots:       roots,
		hypervisor:  spawn.Exec{Binary: cfg.HypervisorBinary},
		consoleConn: consoleConn,
		logConn:     logConn,
		statsConn:   statsConn,
		events:      make(chan any, 64),
		fatal:       make(chan error, 1),
	}, nil
}

// loadSingleCA reads and parses exactly one PEM certificate from path,
// per spec.md §4.6's "must be exactly one CA."
func loadSingleCA(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, rest := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM certificate found in %s", path)
	}
	if len(rest) > 0 {
		if next, _ := pem.Decode(rest); next != nil {
			return nil, fmt.Errorf("%s carries more than one certificate", path)
		}
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}

// Run ignores SIGPIPE, binds the TLS listener, starts the helper
// feeders and the event loop, then accepts connections until ctx is
// canceled or a fatal helper error occurs. Exit code 0 on clean
// shutdown, per spec.md §6.
func (d *Daemon) Run() error {
	signal.Ignore(syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := d.listen()
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	defer listener.Close()

	state := engine.NewState(d.cfg.WorkingDir, d.consoleConn, d.logConn, asHelperConn(d.statsConn))

	go d.feedConsole(ctx)
	go d.feedLog(ctx)
	if d.statsConn != nil {
		go d.feedStats(ctx)
	}
	go d.eventLoop(ctx, state)
	go d.acceptLoop(ctx, listener)

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
		return nil
	case err := <-d.fatal:
		return err
	}
}

// listen binds the TLS listener on [tcpPort] with SO_REUSEADDR set
// explicitly, per spec.md §4.6 — Go's net package already sets
// close-on-exec on every socket it creates.
func (d *Daemon) listen() (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	inner, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", tcpPort))
	if err != nil {
		return nil, err
	}
	return tls.NewListener(inner, d.tlsConfig), nil
}

func (d *Daemon) acceptLoop(ctx context.Context, listener net.Listener) {
	var nextSession engine.SessionID
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			d.logger.Error("accept failed", "err", err)
			continue
		}
		nextSession++
		go d.handleSession(ctx, nextSession, conn.(*tls.Conn))
	}
}

// waitForExit blocks on the spawned VM's pid via lib/process and, once
// it has reaped the process, reports the exit back to the event loop
// so [engine.HandleShutdown] can run.
func (d *Daemon) waitForExit(id string, pid int) {
	status, err := process.Wait(pid)
	if err != nil {
		d.logger.Error("waiting on vm process", "vm", id, "pid", pid, "err", err)
		return
	}
	d.events <- processExitedEvent{id: id, status: status}
}

// spawnVM performs the blocking I/O of materializing a pending VM's
// image and invoking the hypervisor, then hands the result back to the
// event loop via [spawnResultEvent] — this is the daemon's half of the
// package-doc split between pure handlers and the I/O that carries
// them out.
func (d *Daemon) spawnVM(vm engine.PendingVM, owner engine.SessionID) {
	path, err := engine.PrepareImage(d.cfg.WorkingDir, vm)
	if err != nil {
		d.logger.Error("preparing vm image", "vm", vm.ID.String(), "err", err)
		return
	}
	if hash, hashErr := image.HashFile(path); hashErr == nil {
		d.logger.Info("vm image materialized", "vm", vm.ID.String(), "blake3", hash, "path", path)
	}

	handle, err := d.hypervisor.Spawn(context.Background(), spawn.Request{
		ID:        vm.ID.String(),
		ImagePath: path,
		Config:    vm.Config,
	})
	if err != nil {
		d.logger.Error("spawning vm", "vm", vm.ID.String(), "err", err)
		return
	}

	d.events <- spawnResultEvent{spawned: engine.Spawned{VM: vm, Handle: handle, Owner: owner}, now: time.Now()}
	go d.waitForExit(vm.ID.String(), handle.Pid)
	go d.relayConsole(vm.ID.String(), handle.Stdout)
}

// relayConsole reads a spawned VM's stdout until EOF, forwarding each
// line into the engine as a console event — see DESIGN.md's note on
// [spawn.Handle.Stdout] for why vmd itself drives this relay instead
// of the console helper.
func (d *Daemon) relayConsole(id string, stdout *os.File) {
	if stdout == nil {
		return
	}
	defer stdout.Close()
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := append(append([]byte(nil), scanner.Bytes()...), '\n')
		d.events <- consoleHelperEvent{body: wire.EncodeEvent(id, line)}
	}
}

// asHelperConn returns h as an [engine.HelperConn], or a true nil
// interface if h is nil — a bare `d.statsConn` would instead produce a
// non-nil interface wrapping a nil *helperSocket, breaking every
// `state.StatsConn == nil` check in lib/engine.
func asHelperConn(h *helperSocket) engine.HelperConn {
	if h == nil {
		return nil
	}
	return h
}

func killAll(logger *slog.Logger, vms []engine.RunningVM) {
	for _, vm := range vms {
		if err := process.Signal(vm.Pid, unix.SIGTERM); err != nil {
			logger.Warn("signaling preempted/revoked vm", "vm", vm.ID.String(), "pid", vm.Pid, "err", err)
		}
	}
}
