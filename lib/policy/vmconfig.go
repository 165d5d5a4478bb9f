// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// VMConfig is the run configuration carried by a VM (leaf) certificate,
// per spec.md §3. It is assembled from extensions 5 (requested
// memory, reusing the delegation's memory OID), 6 (cpuid), 7 (network), 8 (block_device), 9 (vmimage,
// required — its presence is what makes a certificate a VM cert), and
// 10 (argv).
type VMConfig struct {
	CPUID           int64
	RequestedMemory int64
	BlockDevice     *string // nil: no block device attached
	Networks        []string
	Image           Image
	Argv            []string // nil: no override of the image's default argv
}

func encodeCPUID(id int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(id)
	return b.BytesOrPanic()
}

func decodeCPUID(der []byte) (int64, error) {
	s := cryptobyte.String(der)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	return v, finish(s)
}

func encodeBlockDevice(name string) []byte {
	var b cryptobyte.Builder
	b.AddASN1(casn1.UTF8String, func(c *cryptobyte.Builder) {
		c.AddBytes([]byte(name))
	})
	return b.BytesOrPanic()
}

func decodeBlockDevice(der []byte) (string, error) {
	s := cryptobyte.String(der)
	name, err := readUTF8String(&s)
	if err != nil {
		return "", err
	}
	return name, finish(s)
}

func encodeNetworks(names []string) []byte {
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		for _, n := range names {
			seq.AddASN1(casn1.UTF8String, func(c *cryptobyte.Builder) {
				c.AddBytes([]byte(n))
			})
		}
	})
	return b.BytesOrPanic()
}

func decodeNetworks(der []byte) ([]string, error) {
	s := cryptobyte.String(der)
	seq, err := readSequence(&s)
	if err != nil {
		return nil, err
	}
	if err := finish(s); err != nil {
		return nil, err
	}
	var out []string
	for !seq.Empty() {
		name, err := readUTF8String(&seq)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// encodeArgv and decodeArgv share [encodeNetworks]/[decodeNetworks]'s
// SEQUENCE OF UTF8String shape; kept as separate named functions
// because argv and network names are distinct extensions with
// distinct OIDs and must not be interchangeable at call sites.
func encodeArgv(argv []string) []byte {
	return encodeNetworks(argv)
}

func decodeArgv(der []byte) ([]string, error) {
	return decodeNetworks(der)
}
