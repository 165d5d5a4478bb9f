// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Delegation is the resource grant spec.md §3 assigns to a non-leaf
// certificate: how many child VMs it may own, which cpuids and
// bridges they may use, and how much memory and block storage they
// may draw from in total.
//
// Delegation is assembled from five independent extensions (suffixes
// 1, 2, 3, 4, 5); a certificate carrying none of them is a delegation
// with every field at its zero value, which grants nothing.
//
// Block is carried as a single integer. The engine's resource check
// compares it with the number of live VMs under the prefix that have a
// block device attached; block device sizes are not tracked.
type Delegation struct {
	VMs     int64
	Bridges []Bridge
	Block   *int64 // nil: no block budget delegated
	CPUIDs  []int64
	Memory  int64
}

func encodeVMs(n int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(n)
	return b.BytesOrPanic()
}

func decodeVMs(der []byte) (int64, error) {
	s := cryptobyte.String(der)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	return v, finish(s)
}

func encodeBlock(mb int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(mb)
	return b.BytesOrPanic()
}

func decodeBlock(der []byte) (int64, error) {
	s := cryptobyte.String(der)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	return v, finish(s)
}

func encodeMemory(mb int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(mb)
	return b.BytesOrPanic()
}

func decodeMemory(der []byte) (int64, error) {
	s := cryptobyte.String(der)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	return v, finish(s)
}

// encodeCPUIDs builds a SEQUENCE OF INTEGER. spec.md §3 calls cpuids a
// set; this package encodes it as a SEQUENCE rather than a DER SET to
// keep byte order caller-controlled and round-trip-stable without a
// canonical-ordering step — callers that need set semantics test
// membership (as the engine's resource check does), not by relying
// on DER SET sort order.
func encodeCPUIDs(ids []int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		for _, id := range ids {
			seq.AddASN1Int64(id)
		}
	})
	return b.BytesOrPanic()
}

func decodeCPUIDs(der []byte) ([]int64, error) {
	s := cryptobyte.String(der)
	seq, err := readSequence(&s)
	if err != nil {
		return nil, err
	}
	if err := finish(s); err != nil {
		return nil, err
	}
	var out []int64
	for !seq.Empty() {
		v, err := readInt64(&seq)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
