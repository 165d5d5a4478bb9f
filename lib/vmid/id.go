// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package vmid implements the identifier model of spec.md §3: an
// ordered sequence of UTF-8 labels forming a path (e.g.
// "tenant/group/vm"). The prefix of a certificate is the path of its
// issuers; the name is the leaf CN; the full id of a VM is
// prefix++[name]. Ids are unique within a live engine.
package vmid

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Separator joins labels in the string form of an ID.
const Separator = "/"

// ID is an ordered, immutable sequence of labels. The zero value is
// the empty path (the root prefix, used for certificates issued
// directly by the trust root).
type ID struct {
	labels []string
}

// ErrEmptyLabel is returned by New/Parse when a label is empty or
// contains the path separator.
var ErrEmptyLabel = errors.New("vmid: label must be non-empty and must not contain '/'")

// New builds an ID from individual labels, validating each one.
func New(labels ...string) (ID, error) {
	for _, label := range labels {
		if label == "" || strings.Contains(label, Separator) {
			return ID{}, fmt.Errorf("%w: %q", ErrEmptyLabel, label)
		}
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return ID{labels: out}, nil
}

// Parse splits a "/"-joined string into an ID. The empty string parses
// to the root ID with zero labels.
func Parse(s string) (ID, error) {
	if s == "" {
		return ID{}, nil
	}
	return New(strings.Split(s, Separator)...)
}

// String renders the ID as its "/"-joined form.
func (id ID) String() string {
	return strings.Join(id.labels, Separator)
}

// Labels returns a copy of the ID's labels, in order from root to leaf.
func (id ID) Labels() []string {
	out := make([]string, len(id.labels))
	copy(out, id.labels)
	return out
}

// Len returns the number of labels.
func (id ID) Len() int {
	return len(id.labels)
}

// IsRoot reports whether the ID has no labels.
func (id ID) IsRoot() bool {
	return len(id.labels) == 0
}

// Name returns the last label (the leaf CN for a VM id, empty for the
// root).
func (id ID) Name() string {
	if len(id.labels) == 0 {
		return ""
	}
	return id.labels[len(id.labels)-1]
}

// Prefix returns the ID with its last label removed — the path of
// issuers for a VM id, or the parent tenant for a delegation id.
// Prefix of the root ID is the root ID.
func (id ID) Prefix() ID {
	if len(id.labels) == 0 {
		return ID{}
	}
	out := make([]string, len(id.labels)-1)
	copy(out, id.labels[:len(id.labels)-1])
	return ID{labels: out}
}

// Append returns a new ID with label added at the end. Used to build a
// VM's full id as prefix.Append(name).
func (id ID) Append(label string) (ID, error) {
	if label == "" || strings.Contains(label, Separator) {
		return ID{}, fmt.Errorf("%w: %q", ErrEmptyLabel, label)
	}
	out := make([]string, len(id.labels)+1)
	copy(out, id.labels)
	out[len(id.labels)] = label
	return ID{labels: out}, nil
}

// HasPrefix reports whether p is an ancestor of (or equal to) id —
// spec.md §4.5's "tenants cannot see siblings" check for the info
// command, and the ancestor-walk the resource algebra uses to find
// every Q whose delegation must be re-checked.
func (id ID) HasPrefix(p ID) bool {
	if len(p.labels) > len(id.labels) {
		return false
	}
	for i, label := range p.labels {
		if id.labels[i] != label {
			return false
		}
	}
	return true
}

// Ancestors returns every prefix of id from the root (inclusive of the
// empty root) up to and including id's own immediate prefix — i.e. the
// chain of delegation scopes the resource algebra sums over.
// Ancestors does not include id itself.
func (id ID) Ancestors() []ID {
	out := make([]ID, len(id.labels))
	for i := range id.labels {
		out[i] = ID{labels: id.labels[:i]}
	}
	return out
}

// Match reports whether id matches a glob pattern, itself given in
// "/"-joined path form. Each path.Match wildcard is scoped to a single
// label — "*" does not cross a "/" — so "tenant/*" matches
// "tenant/vm1" but not "tenant/group/vm1". This is the semantics
// spec.md §4.5's "info <id-glob>" command needs.
func (id ID) Match(pattern string) (bool, error) {
	return path.Match(pattern, id.String())
}

// Equal reports whether two IDs have identical labels.
func (id ID) Equal(other ID) bool {
	return id.String() == other.String()
}

// MarshalText implements encoding.TextMarshaler so ID serializes as
// its "/"-joined string in both CBOR and JSON.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
