// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ukvm-io/vmd/lib/wire"
)

func TestWriteReadRoundTrip(t *testing.T) {
	frame := wire.NewFrame(wire.Version, wire.TagCreate, []byte("payload"))

	var buf bytes.Buffer
	if err := WriteFrame(&buf, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Header != frame.Header {
		t.Errorf("header mismatch: got %+v, want %+v", got.Header, frame.Header)
	}
	if !bytes.Equal(got.Body, frame.Body) {
		t.Errorf("body mismatch: got %q, want %q", got.Body, frame.Body)
	}
}

func TestReadTwoConcatenatedFrames(t *testing.T) {
	first := wire.NewFrame(wire.Version, wire.TagInfo, []byte("first"))
	second := wire.NewFrame(wire.Version, wire.TagDestroy, []byte("second"))

	var buf bytes.Buffer
	if err := WriteFrame(&buf, first); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, second); err != nil {
		t.Fatal(err)
	}

	gotFirst, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame (first): %v", err)
	}
	if !bytes.Equal(gotFirst.Body, first.Body) {
		t.Errorf("first body = %q, want %q", gotFirst.Body, first.Body)
	}

	gotSecond, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame (second): %v", err)
	}
	if !bytes.Equal(gotSecond.Body, second.Body) {
		t.Errorf("second body = %q, want %q", gotSecond.Body, second.Body)
	}
}

func TestReadFrameEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, ErrEOF) {
		t.Errorf("err = %v, want ErrEOF", err)
	}
}

func TestReadFrameTooMuch(t *testing.T) {
	header := wire.Header{Version: wire.Version, Tag: wire.TagCreate, Length: wire.MaxBodySize + 1}
	buf := make([]byte, wire.HeaderSize)
	header.Encode(buf)

	_, err := ReadFrame(bytes.NewReader(buf))
	if !errors.Is(err, ErrTooMuch) {
		t.Errorf("err = %v, want ErrTooMuch", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	header := wire.Header{Version: wire.Version, Tag: wire.TagCreate, Length: 10}
	buf := make([]byte, wire.HeaderSize)
	header.Encode(buf)
	buf = append(buf, []byte("short")...) // fewer than 10 body bytes

	_, err := ReadFrame(bytes.NewReader(buf))
	if !errors.Is(err, ErrException) {
		t.Errorf("err = %v, want ErrException", err)
	}
}

// shortWriter writes at most n bytes per Write call, to exercise
// WriteFrame's short-write retry loop.
type shortWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		p = p[:w.n]
	}
	return w.buf.Write(p)
}

func TestWriteFrameShortWrites(t *testing.T) {
	frame := wire.NewFrame(wire.Version, wire.TagConsole, []byte("a long enough payload to span multiple short writes"))
	sw := &shortWriter{n: 3}
	if err := WriteFrame(sw, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&sw.buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got.Body, frame.Body) {
		t.Errorf("body mismatch: got %q, want %q", got.Body, frame.Body)
	}
}

var _ io.Writer = (*shortWriter)(nil)
