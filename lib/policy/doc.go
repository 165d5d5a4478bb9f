// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the C2 policy projection of spec.md §4.2:
// decoding the engine's custom X.509 certificate extensions into the
// delegation, VM-config, permission, and CRL values the engine's
// authorization decisions are built on.
//
// Every extension lives under the arc 1.3.6.1.4.1.49836.42.* — see
// [OID] — and DER-encodes one value per [4.2]. Every decoder in this
// package enforces spec.md's "zero trailing bytes" rule: any content
// left over after an extension's value has been fully parsed is a
// parse error, not a value to silently discard. Encoders are the exact
// inverse of their decoders, so decode(encode(v)) == v and
// encode(decode(der)) == der for every well-formed der.
//
// DER parsing uses golang.org/x/crypto/cryptobyte and its asn1
// subpackage rather than encoding/asn1, because several of these
// extensions are CHOICE types keyed on context-specific tags
// (vmimage, the bridge internal/external variant) that cryptobyte
// expresses directly as tag comparisons; encoding/asn1's struct tags
// cannot describe a CHOICE. The one exception is the crl extension
// (suffix 43), whose value is a standard RFC 5280 CertificateList —
// for that, this package defers to crypto/x509's own
// ParseRevocationList rather than re-deriving a CRL grammar that the
// standard library already parses correctly.
package policy
