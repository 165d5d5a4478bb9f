// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
)

// base is the private enterprise arc every policy extension OID hangs
// off of: 1.3.6.1.4.1.49836.42.
var base = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 49836, 42}

// oid builds the extension OID for a given suffix, per spec.md §6's
// suffix table.
func oid(suffix int) asn1.ObjectIdentifier {
	id := make(asn1.ObjectIdentifier, len(base)+1)
	copy(id, base)
	id[len(base)] = suffix
	return id
}

// Extension OIDs, named by the suffix table in spec.md §6.
var (
	OIDVersion     = oid(0)
	OIDVMs         = oid(1)
	OIDBridges     = oid(2)
	OIDBlock       = oid(3)
	OIDCPUIDs      = oid(4)
	OIDMemory      = oid(5)
	OIDCPUID       = oid(6)
	OIDNetwork     = oid(7)
	OIDBlockDevice = oid(8)
	OIDVMImage     = oid(9)
	OIDArgv        = oid(10)
	OIDPermissions = oid(42)
	OIDCRL         = oid(43)
)

// findExtension returns the raw DER value of cert's extension matching
// id, and whether it was present.
func findExtension(cert *x509.Certificate, id asn1.ObjectIdentifier) (pkix.Extension, bool) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(id) {
			return ext, true
		}
	}
	return pkix.Extension{}, false
}
