// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the C4 transport mux of spec.md §4.4: a
// uniform framed reader/writer over any stream socket (TLS session or
// Unix domain socket), built on the lib/wire header format.
//
// [ReadFrame] retries short reads until the header and then the body
// fill completely — the same loop-until-full discipline the teacher's
// own Unix socket server uses for request bodies, generalized here to
// the fixed-header wire format instead of self-delimited CBOR. Each
// write goes through [WriteFrame], which loops on short writes and
// wraps any error as [ErrException] — when the underlying socket is a
// TLS session, the caller is expected to treat a write error as a
// disconnect and synthesize the corresponding engine event.
package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/ukvm-io/vmd/lib/wire"
)

// Error kinds spec.md §4.4 names for read_exactly: Eof, Toomuch,
// Exception, Msg (a decode/framing problem once header and body are
// in hand). These are sentinel errors so callers can classify with
// errors.Is instead of string matching.
var (
	// ErrEOF means the peer closed the connection cleanly before any
	// bytes of a new frame arrived. Distinguished from a mid-frame
	// disconnect so callers can treat it as a quiet session end rather
	// than a runtime error.
	ErrEOF = errors.New("transport: connection closed")

	// ErrTooMuch means the header declared a body larger than
	// wire.MaxBodySize.
	ErrTooMuch = errors.New("transport: message exceeds maximum size")

	// ErrException wraps an I/O error encountered mid-read or mid-write
	// that is not a clean EOF.
	ErrException = errors.New("transport: io exception")

	// ErrMsg wraps a framing problem in a header that was fully read
	// but is otherwise malformed.
	ErrMsg = errors.New("transport: malformed frame")
)

// ReadFrame reads exactly one frame from r: the 8-byte header, then
// its declared body. Retries short reads (io.ReadFull already does
// this) and classifies the failure mode per spec.md §4.4.
func ReadFrame(r io.Reader) (wire.Frame, error) {
	headerBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		if errors.Is(err, io.EOF) {
			return wire.Frame{}, ErrEOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return wire.Frame{}, fmt.Errorf("%w: connection closed mid-header", ErrException)
		}
		return wire.Frame{}, fmt.Errorf("%w: reading header: %v", ErrException, err)
	}

	header, err := wire.DecodeHeader(headerBuf)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("%w: %v", ErrMsg, err)
	}
	if header.Length > wire.MaxBodySize {
		return wire.Frame{}, fmt.Errorf("%w: %d bytes", ErrTooMuch, header.Length)
	}

	body := make([]byte, header.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wire.Frame{}, fmt.Errorf("%w: connection closed mid-frame", ErrException)
		}
		return wire.Frame{}, fmt.Errorf("%w: reading body: %v", ErrException, err)
	}

	return wire.Frame{Header: header, Body: body}, nil
}

// WriteFrame writes one complete frame to w, looping on short writes.
// Any write error is wrapped as [ErrException].
func WriteFrame(w io.Writer, frame wire.Frame) error {
	buf := make([]byte, wire.HeaderSize+len(frame.Body))
	frame.Header.Encode(buf[:wire.HeaderSize])
	copy(buf[wire.HeaderSize:], frame.Body)

	if err := writeAll(w, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrException, err)
	}
	return nil
}

// writeAll loops on short writes until buf is fully written or an
// error occurs — the write_raw loop of spec.md §4.4.
func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
