// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the C1 wire codec of spec.md §4.1: every Unix
// helper socket and every TLS session speaks the same framed protocol —
// an 8-byte header (version, tag, length, all network byte order)
// followed by length opaque bytes.
//
// Tags partition into three spaces: commands (sent client/daemon →
// engine or engine → helper), replies (success or typed failure), and
// events (unsolicited pushes from a helper to the engine, or from the
// engine to a subscriber). A request id threads a reply back to its
// command; spec.md leaves the exact placement as an implementation
// choice ("folded into tag or the first body bytes depending on
// message — implementers preserve the source's layout"). This
// implementation folds it into the first 4 bytes of the body for every
// tag that carries one (commands, replies, and the one-shot statistics
// event) — see [EncodeRequestID] / [DecodeRequestID] — leaving Tag
// free to identify only the message kind.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed length, in bytes, of every frame header.
const HeaderSize = 8

// MaxBodySize bounds the length field the engine will honor before
// treating a frame as oversized — spec.md §4.1: "No message exceeds
// 2^32-1 bytes; oversized messages are rejected with a framing error."
// The wire format's length field could in principle address up to
// 2^32-1 bytes, but no legitimate body on these sockets (console/log
// lines, stats samples, VM config listings) approaches even this
// limit; capping far below it turns a malformed or hostile header into
// an immediate framing error instead of an attempted multi-gigabyte
// allocation.
const MaxBodySize = 64 << 20 // 64 MiB

// Version is the engine's currently supported wire protocol version,
// spec.md §4.2's AV0.
const Version uint16 = 0

// Tag identifies the kind of a frame's body.
type Tag uint16

// Command tags (client/admin → engine, or engine → helper).
const (
	TagInfo Tag = iota + 1
	TagCreate
	TagDestroy
	TagStatistics
	TagConsole
	TagLog
	TagCrl
	TagForceCreate

	// TagAttach and TagDetach are engine → console-helper commands:
	// "attach id" / "detach id" from spec.md §6.
	TagAttach
	TagDetach

	// TagAddPid and TagRemovePid are engine → stats-helper commands.
	TagAddPid
	TagRemovePid
)

// Reply tags.
const (
	TagSuccess Tag = iota + 100
	TagFailure
)

// Event tags (helper → engine, or engine → subscriber).
const (
	TagConsoleLine Tag = iota + 200
	TagLogLine
	TagStatsSample
)

// Header is the fixed 8-byte frame prefix.
type Header struct {
	Version uint16
	Tag     Tag
	Length  uint32
}

// Encode writes the header's 8-byte wire form into buf, which must be
// at least HeaderSize bytes long.
func (h Header) Encode(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.Tag))
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
}

// DecodeHeader parses an 8-byte buffer into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	return Header{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		Tag:     Tag(binary.BigEndian.Uint16(buf[2:4])),
		Length:  binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// Frame is a complete message: header plus its opaque body.
type Frame struct {
	Header Header
	Body   []byte
}

// NewFrame builds a Frame with the header's Length set from len(body).
func NewFrame(version uint16, tag Tag, body []byte) Frame {
	return Frame{
		Header: Header{Version: version, Tag: tag, Length: uint32(len(body))},
		Body:   body,
	}
}

// requestIDSize is the width of the folded request id prefix.
const requestIDSize = 4

// EncodeRequestID prepends a 4-byte big-endian request id to a body,
// per this package's placement choice (see package doc).
func EncodeRequestID(id uint32, body []byte) []byte {
	out := make([]byte, requestIDSize+len(body))
	binary.BigEndian.PutUint32(out[:requestIDSize], id)
	copy(out[requestIDSize:], body)
	return out
}

// DecodeRequestID splits a body into its folded request id and the
// remaining payload.
func DecodeRequestID(body []byte) (id uint32, payload []byte, err error) {
	if len(body) < requestIDSize {
		return 0, nil, fmt.Errorf("wire: body too short for request id: %d bytes", len(body))
	}
	return binary.BigEndian.Uint32(body[:requestIDSize]), body[requestIDSize:], nil
}

// EncodeEvent builds the body of a console-line or log-line event:
// the referenced VM id as a length-prefixed UTF-8 string, followed by
// the opaque payload (one line, including its terminator if any). Console
// and log helpers use this shape; stats events instead fold a request
// id via [EncodeRequestID] since they answer a specific command.
func EncodeEvent(id string, payload []byte) []byte {
	idBytes := []byte(id)
	out := make([]byte, 2+len(idBytes)+len(payload))
	binary.BigEndian.PutUint16(out[:2], uint16(len(idBytes)))
	n := copy(out[2:], idBytes)
	copy(out[2+n:], payload)
	return out
}

// DecodeEvent splits a console-line or log-line event body into its
// VM id and payload.
func DecodeEvent(body []byte) (id string, payload []byte, err error) {
	if len(body) < 2 {
		return "", nil, fmt.Errorf("wire: event body too short for id length: %d bytes", len(body))
	}
	idLen := int(binary.BigEndian.Uint16(body[:2]))
	rest := body[2:]
	if len(rest) < idLen {
		return "", nil, fmt.Errorf("wire: event body too short for id: want %d, have %d", idLen, len(rest))
	}
	return string(rest[:idLen]), rest[idLen:], nil
}

// EncodePidCommand builds the body of an "add pid" / "remove pid"
// engine-to-stats-helper command: the VM id the pid belongs to,
// followed by the pid itself, so the helper can serve a later
// one-shot statistics-by-id request without the engine needing to
// track pids on the helper's behalf.
func EncodePidCommand(id string, pid int) []byte {
	var pidBytes [4]byte
	binary.BigEndian.PutUint32(pidBytes[:], uint32(pid))
	return EncodeEvent(id, pidBytes[:])
}

// DecodePidCommand is the inverse of [EncodePidCommand].
func DecodePidCommand(body []byte) (id string, pid int, err error) {
	id, payload, err := DecodeEvent(body)
	if err != nil {
		return "", 0, err
	}
	if len(payload) != 4 {
		return "", 0, fmt.Errorf("wire: pid command payload must be 4 bytes, got %d", len(payload))
	}
	return id, int(binary.BigEndian.Uint32(payload)), nil
}

// Fail constructs a failure reply frame carrying a UTF-8 human message,
// per spec.md §4.1's fail(msg, id, version). The reply folds the
// originating request's id so the client can correlate it to the
// command that failed.
func Fail(msg string, id uint32, version uint16) Frame {
	return NewFrame(version, TagFailure, EncodeRequestID(id, []byte(msg)))
}

// Success constructs a success reply frame, optionally carrying a
// CBOR-encoded payload (info listings, a CRL download, a statistics
// sample). Pass nil payload for a bodiless acknowledgement (e.g. "crl
// installed").
func Success(id uint32, version uint16, payload []byte) Frame {
	return NewFrame(version, TagSuccess, EncodeRequestID(id, payload))
}
