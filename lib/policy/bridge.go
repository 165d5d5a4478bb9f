// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"net"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Bridge is one entry of a delegation's bridges mapping: a name, and
// either "internal" (the engine-managed bridge the name refers to
// needs no further configuration) or an [External] description.
//
// Wire form is the CHOICE of spec.md §6: [0] UTF8String = internal
// (the string is the name); [1] SEQUENCE = external.
type Bridge struct {
	Name     string
	External *External // nil for an internal bridge
}

// External describes a bridge whose DHCP range and routing the engine
// must configure itself.
type External struct {
	StartIP  net.IP
	EndIP    net.IP
	RouterIP net.IP
	Netmask  int
}

const (
	bridgeInternalTag = 0 // [0] UTF8String, primitive
	bridgeExternalTag = 1 // [1] SEQUENCE, constructed
)

// encodeBridges builds the bridges extension value (suffix 2): a
// SEQUENCE of bridge CHOICE entries.
func encodeBridges(bridges []Bridge) []byte {
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		for _, br := range bridges {
			if br.External == nil {
				seq.AddASN1(contextTag(bridgeInternalTag, false), func(c *cryptobyte.Builder) {
					c.AddBytes([]byte(br.Name))
				})
				continue
			}
			seq.AddASN1(contextTag(bridgeExternalTag, true), func(c *cryptobyte.Builder) {
				c.AddASN1(casn1.UTF8String, func(n *cryptobyte.Builder) {
					n.AddBytes([]byte(br.Name))
				})
				c.AddASN1(casn1.OCTET_STRING, func(ip *cryptobyte.Builder) {
					ip.AddBytes(br.External.StartIP.To4())
				})
				c.AddASN1(casn1.OCTET_STRING, func(ip *cryptobyte.Builder) {
					ip.AddBytes(br.External.EndIP.To4())
				})
				c.AddASN1(casn1.OCTET_STRING, func(ip *cryptobyte.Builder) {
					ip.AddBytes(br.External.RouterIP.To4())
				})
				c.AddASN1Int64(int64(br.External.Netmask))
			})
		}
	})
	return b.BytesOrPanic()
}

// decodeBridges is the inverse of [encodeBridges].
func decodeBridges(der []byte) ([]Bridge, error) {
	s := cryptobyte.String(der)
	seq, err := readSequence(&s)
	if err != nil {
		return nil, err
	}
	if err := finish(s); err != nil {
		return nil, err
	}

	var out []Bridge
	for !seq.Empty() {
		switch {
		case seq.PeekASN1Tag(contextTag(bridgeInternalTag, false)):
			var name cryptobyte.String
			if !seq.ReadASN1(&name, contextTag(bridgeInternalTag, false)) {
				return nil, errors.New("policy: malformed internal bridge entry")
			}
			out = append(out, Bridge{Name: string(name)})

		case seq.PeekASN1Tag(contextTag(bridgeExternalTag, true)):
			var entry cryptobyte.String
			if !seq.ReadASN1(&entry, contextTag(bridgeExternalTag, true)) {
				return nil, errors.New("policy: malformed external bridge entry")
			}
			ext, name, err := decodeExternal(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, Bridge{Name: name, External: ext})

		default:
			var tag casn1.Tag
			var any cryptobyte.String
			seq.ReadAnyASN1(&any, &tag)
			return nil, wrongChoice(tag)
		}
	}
	return out, nil
}

func decodeExternal(entry cryptobyte.String) (*External, string, error) {
	name, err := readUTF8String(&entry)
	if err != nil {
		return nil, "", err
	}
	start, err := readOctetString(&entry)
	if err != nil {
		return nil, "", err
	}
	end, err := readOctetString(&entry)
	if err != nil {
		return nil, "", err
	}
	router, err := readOctetString(&entry)
	if err != nil {
		return nil, "", err
	}
	netmask, err := readInt64(&entry)
	if err != nil {
		return nil, "", err
	}
	if err := finish(entry); err != nil {
		return nil, "", err
	}
	if len(start) != 4 || len(end) != 4 || len(router) != 4 {
		return nil, "", errors.New("policy: external bridge address is not IPv4")
	}
	return &External{
		StartIP:  net.IP(start),
		EndIP:    net.IP(end),
		RouterIP: net.IP(router),
		Netmask:  int(netmask),
	}, name, nil
}
