// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"golang.org/x/crypto/cryptobyte"
)

// Permission is the bit-flag set spec.md §3 names on a leaf
// certificate: {All, Info, Create, Force_create, Block, Statistics,
// Console, Log, Crl}. All implies every other bit — see [Permission.Has].
type Permission uint32

const (
	PermInfo Permission = 1 << iota
	PermCreate
	PermForceCreate
	PermBlock
	PermStatistics
	PermConsole
	PermLog
	PermCrl
	PermAll
)

// Has reports whether p grants the named permission, treating PermAll
// as implying every other bit.
func (p Permission) Has(named Permission) bool {
	return p&PermAll != 0 || p&named != 0
}

// String renders a human-readable permission list, for log lines and
// failure messages.
func (p Permission) String() string {
	if p.Has(PermAll) {
		return "All"
	}
	names := []struct {
		bit  Permission
		name string
	}{
		{PermInfo, "Info"},
		{PermCreate, "Create"},
		{PermForceCreate, "Force_create"},
		{PermBlock, "Block"},
		{PermStatistics, "Statistics"},
		{PermConsole, "Console"},
		{PermLog, "Log"},
		{PermCrl, "Crl"},
	}
	out := ""
	for _, n := range names {
		if p&n.bit == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	if out == "" {
		return "none"
	}
	return out
}

// EncodePermissions DER-encodes a permission set as a single INTEGER
// bitmask, the value of the permissions extension (suffix 42).
func EncodePermissions(p Permission) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(int64(p))
	return b.BytesOrPanic()
}

// DecodePermissions is the inverse of [EncodePermissions].
func DecodePermissions(der []byte) (Permission, error) {
	s := cryptobyte.String(der)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	if err := finish(s); err != nil {
		return 0, err
	}
	return Permission(v), nil
}
