// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package vmid

import "testing"

func TestParseString(t *testing.T) {
	id, err := Parse("tenant/group/vm")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := id.String(); got != "tenant/group/vm" {
		t.Errorf("String() = %q", got)
	}
	if got := id.Name(); got != "vm" {
		t.Errorf("Name() = %q", got)
	}
	if got := id.Prefix().String(); got != "tenant/group" {
		t.Errorf("Prefix().String() = %q", got)
	}
}

func TestParseEmpty(t *testing.T) {
	id, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !id.IsRoot() {
		t.Errorf("expected root id")
	}
}

func TestNewRejectsEmptyLabel(t *testing.T) {
	if _, err := New("tenant", "", "vm"); err == nil {
		t.Fatal("expected error for empty label")
	}
	if _, err := New("tenant/group"); err == nil {
		t.Fatal("expected error for label containing separator")
	}
}

func TestAppend(t *testing.T) {
	prefix, err := New("tenant", "group")
	if err != nil {
		t.Fatal(err)
	}
	full, err := prefix.Append("vm")
	if err != nil {
		t.Fatal(err)
	}
	if got := full.String(); got != "tenant/group/vm" {
		t.Errorf("Append result = %q", got)
	}
	// prefix is unmodified (value semantics).
	if got := prefix.String(); got != "tenant/group" {
		t.Errorf("prefix mutated: %q", got)
	}
}

func TestHasPrefix(t *testing.T) {
	id, _ := Parse("tenant/group/vm")
	tenant, _ := Parse("tenant")
	other, _ := Parse("other")
	sibling, _ := Parse("tenant/group2")

	if !id.HasPrefix(tenant) {
		t.Error("expected tenant to be a prefix of tenant/group/vm")
	}
	if id.HasPrefix(other) {
		t.Error("did not expect other to be a prefix")
	}
	if id.HasPrefix(sibling) {
		t.Error("did not expect sibling path to be a prefix")
	}
	root, _ := Parse("")
	if !id.HasPrefix(root) {
		t.Error("expected root to be a prefix of everything")
	}
}

func TestAncestors(t *testing.T) {
	id, _ := Parse("tenant/group/vm")
	ancestors := id.Ancestors()
	if len(ancestors) != 3 {
		t.Fatalf("len(Ancestors()) = %d, want 3", len(ancestors))
	}
	want := []string{"", "tenant", "tenant/group"}
	for i, a := range ancestors {
		if a.String() != want[i] {
			t.Errorf("Ancestors()[%d] = %q, want %q", i, a.String(), want[i])
		}
	}
}

func TestMatch(t *testing.T) {
	id, _ := Parse("tenant/vm1")
	deep, _ := Parse("tenant/group/vm1")

	cases := []struct {
		pattern string
		id      ID
		want    bool
	}{
		{"tenant/*", id, true},
		{"tenant/*", deep, false}, // "*" does not cross "/"
		{"tenant/**", deep, false},
		{"tenant/vm1", id, true},
		{"other/*", id, false},
	}
	for _, c := range cases {
		got, err := c.id.Match(c.pattern)
		if err != nil {
			t.Fatalf("Match(%q): %v", c.pattern, err)
		}
		if got != c.want {
			t.Errorf("%q.Match(%q) = %v, want %v", c.id.String(), c.pattern, got, c.want)
		}
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	id, _ := Parse("tenant/group/vm")
	data, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var decoded ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(id) {
		t.Errorf("round-trip mismatch: %q != %q", decoded.String(), id.String())
	}
}
