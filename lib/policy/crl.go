// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/x509"
	"fmt"
	"math/big"
)

// CRL wraps a parsed RFC 5280 revocation list together with the
// issuer CN the engine's CRL store keys installs by. The crl
// extension's value (suffix 43) is the DER encoding of a standard
// x509.RevocationList rather than a bespoke structure — crypto/x509
// already parses that grammar correctly, so this package projects
// through it instead of re-deriving it with cryptobyte.
type CRL struct {
	IssuerCN string
	List     *x509.RevocationList
}

// Serial is the CRL's monotonic serial, spec.md §3's "monotonic
// serial per issuer" — the standard CRL Number extension.
func (c CRL) Serial() *big.Int {
	return c.List.Number
}

// Revokes reports whether serial appears in the CRL's revoked entries.
func (c CRL) Revokes(serial *big.Int) bool {
	for _, entry := range c.List.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(serial) == 0 {
			return true
		}
	}
	return false
}

// decodeCRL parses the crl extension's raw DER value as a standard
// X.509 CertificateList.
func decodeCRL(issuerCN string, der []byte) (CRL, error) {
	list, err := x509.ParseRevocationList(der)
	if err != nil {
		return CRL{}, fmt.Errorf("policy: parsing crl: %w", err)
	}
	if list.Number == nil {
		return CRL{}, fmt.Errorf("policy: crl for %q carries no CRL Number extension", issuerCN)
	}
	return CRL{IssuerCN: issuerCN, List: list}, nil
}

// CRLOfCert projects the crl extension (suffix 43) out of cert, if
// present. issuerCN is supplied by the caller (the certificate's own
// Subject CN), since the CRL itself announces revocations made *by*
// that issuer going forward, not about cert.
func CRLOfCert(cert *x509.Certificate, issuerCN string) (CRL, bool, error) {
	ext, ok := findExtension(cert, OIDCRL)
	if !ok {
		return CRL{}, false, nil
	}
	crl, err := decodeCRL(issuerCN, ext.Value)
	if err != nil {
		return CRL{}, false, err
	}
	return crl, true, nil
}

// ContainsCRL reports whether cert carries a crl extension.
func ContainsCRL(cert *x509.Certificate) bool {
	_, ok := findExtension(cert, OIDCRL)
	return ok
}
