// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// ErrTrailingBytes is returned by every decoder in this package when
// an extension's DER value has unconsumed bytes after its defined
// content — spec.md §4.2's "the codec requires zero trailing bytes."
var ErrTrailingBytes = errors.New("policy: trailing bytes")

// finish enforces the zero-trailing-bytes rule on the remainder of s
// once a decoder believes it has consumed an extension's entire value.
func finish(s cryptobyte.String) error {
	if !s.Empty() {
		return ErrTrailingBytes
	}
	return nil
}

func readInt64(s *cryptobyte.String) (int64, error) {
	var v int64
	if !s.ReadASN1Integer(&v) {
		return 0, errors.New("policy: malformed INTEGER")
	}
	return v, nil
}

func readUTF8String(s *cryptobyte.String) (string, error) {
	var contents cryptobyte.String
	if !s.ReadASN1(&contents, casn1.UTF8String) {
		return "", errors.New("policy: malformed UTF8String")
	}
	return string(contents), nil
}

func readOctetString(s *cryptobyte.String) ([]byte, error) {
	var contents cryptobyte.String
	if !s.ReadASN1(&contents, casn1.OCTET_STRING) {
		return nil, errors.New("policy: malformed OCTET STRING")
	}
	return []byte(contents), nil
}

func readSequence(s *cryptobyte.String) (cryptobyte.String, error) {
	var contents cryptobyte.String
	if !s.ReadASN1(&contents, casn1.SEQUENCE) {
		return nil, errors.New("policy: malformed SEQUENCE")
	}
	return contents, nil
}

// contextTag returns the context-specific low-tag-number tag n,
// primitive or constructed as requested. Every CHOICE in this
// package's extensions (bridge internal/external, the vmimage
// variant) is tagged this way rather than wrapped in an EXPLICIT
// SEQUENCE, matching spec.md §6's "[n] Type" notation.
func contextTag(n int, constructed bool) casn1.Tag {
	tag := casn1.Tag(n).ContextSpecific()
	if constructed {
		tag = tag.Constructed()
	}
	return tag
}

func wrongChoice(gotTag casn1.Tag) error {
	return fmt.Errorf("policy: unrecognized CHOICE tag 0x%x", byte(gotTag))
}
