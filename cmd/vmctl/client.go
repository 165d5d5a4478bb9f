// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/ukvm-io/vmd/lib/transport"
	"github.com/ukvm-io/vmd/lib/wire"
)

// dial opens the mTLS connection every subcommand issues its command
// over, mirroring cmd/vmd's own loadSingleCA+tls.Config construction
// so a chain vmd accepts is one vmctl also presents correctly.
func dial(g globalFlags) (*tls.Conn, error) {
	if g.caCertPath == "" || g.certPath == "" || g.keyPath == "" {
		return nil, fmt.Errorf("--cacert, --cert, and --key are all required")
	}

	cert, err := tls.LoadX509KeyPair(g.certPath, g.keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}
	roots, err := loadSingleCA(g.caCertPath)
	if err != nil {
		return nil, fmt.Errorf("loading CA certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
	}
	conn, err := tls.Dial("tcp", fmt.Sprintf("%s:%d", g.host, g.port), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("dialing %s:%d: %w", g.host, g.port, err)
	}
	return conn, nil
}

func loadSingleCA(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM certificate found in %s", path)
	}
	certificate, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(certificate)
	return pool, nil
}

// sendCommand writes one framed command carrying payload as its body
// (already prefixed by the request id per lib/wire's package doc) and
// returns the daemon's single reply frame.
func sendCommand(conn *tls.Conn, tag wire.Tag, requestID uint32, payload []byte) (wire.Frame, error) {
	body := wire.EncodeRequestID(requestID, payload)
	if err := transport.WriteFrame(conn, wire.NewFrame(wire.Version, tag, body)); err != nil {
		return wire.Frame{}, fmt.Errorf("writing command: %w", err)
	}
	frame, err := transport.ReadFrame(conn)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("reading reply: %w", err)
	}
	return frame, nil
}

// replyError extracts a human-readable message from a TagFailure
// reply, or nil if frame is a TagSuccess.
func replyError(frame wire.Frame) error {
	if frame.Header.Tag != wire.TagFailure {
		return nil
	}
	_, msg, err := wire.DecodeRequestID(frame.Body)
	if err != nil {
		return fmt.Errorf("vmd: malformed failure reply: %w", err)
	}
	return fmt.Errorf("vmd: %s", string(msg))
}
