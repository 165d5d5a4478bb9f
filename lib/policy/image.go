// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// ImageKind is the variant tag of a VM's unikernel image, per spec.md
// §6's vmimage CHOICE.
type ImageKind int

const (
	ImageAmd64 ImageKind = iota
	ImageArm64
	ImageAmd64Compressed
)

func (k ImageKind) String() string {
	switch k {
	case ImageAmd64:
		return "amd64"
	case ImageArm64:
		return "arm64"
	case ImageAmd64Compressed:
		return "amd64_compressed"
	default:
		return "unknown"
	}
}

// Image is the decoded vmimage extension value: a kind tag and its
// raw payload. For [ImageAmd64Compressed] the payload is deflate
// compressed per spec.md §6 — see lib/image for the decompression
// step; this package only separates the tag from the bytes.
type Image struct {
	Kind    ImageKind
	Payload []byte
}

// encodeImage builds the vmimage extension value (suffix 9).
func encodeImage(img Image) []byte {
	var b cryptobyte.Builder
	b.AddASN1(contextTag(int(img.Kind), false), func(c *cryptobyte.Builder) {
		c.AddBytes(img.Payload)
	})
	return b.BytesOrPanic()
}

// decodeImage is the inverse of [encodeImage]. spec.md §9 flags an
// ambiguity in the original documentation between choice 1 (arm64)
// and an undocumented "[1] OCTET_STRING" reading; this decoder accepts
// all three defined tags (0, 1, 2) and rejects anything else rather
// than guessing at a fourth.
func decodeImage(der []byte) (Image, error) {
	s := cryptobyte.String(der)

	for kind := ImageAmd64; kind <= ImageAmd64Compressed; kind++ {
		tag := contextTag(int(kind), false)
		if !s.PeekASN1Tag(tag) {
			continue
		}
		var payload cryptobyte.String
		if !s.ReadASN1(&payload, tag) {
			return Image{}, errors.New("policy: malformed vmimage entry")
		}
		if err := finish(s); err != nil {
			return Image{}, err
		}
		return Image{Kind: kind, Payload: []byte(payload)}, nil
	}

	var tag casn1.Tag
	var any cryptobyte.String
	s.ReadAnyASN1(&any, &tag)
	return Image{}, wrongChoice(tag)
}
