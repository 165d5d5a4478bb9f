// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"crypto/x509"
	"time"

	"github.com/ukvm-io/vmd/lib/policy"
)

// verifyChain validates chain (leaf-first) against roots at now, then
// rejects it if any certificate in the chain has been revoked by a
// CRL on file in crls for that certificate's issuer — spec.md §4.5's
// "verify the chain against the trust root with the current CRL set
// and the current wall-clock time."
//
// This is deliberately re-run per handshake against a freshly read
// crls snapshot rather than cached, because CRL state changes as
// sessions install new revocation lists — see spec.md §9's note that
// the chain-of-trust authenticator must be reconstructed per handshake.
func verifyChain(chain []*x509.Certificate, roots *x509.CertPool, crls CRLStore, now time.Time) error {
	if len(chain) == 0 {
		return cryptoError("empty certificate chain")
	}
	leaf := chain[0]
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return cryptoError("chain does not verify: %v", err)
	}

	for _, cert := range chain {
		issuerCN := cert.Issuer.CommonName
		crl, ok := crls[issuerCN]
		if !ok {
			continue
		}
		if crl.Revokes(cert.SerialNumber) {
			return cryptoError("certificate %s revoked by CRL from %q", cert.SerialNumber, issuerCN)
		}
	}
	return nil
}

// validatesUnderCRLs reports whether every certificate in chain is
// still unrevoked under crls. Used after installing a new CRL to find
// which live VMs must now be destroyed — spec.md §4.5's "revoke all
// live VMs whose certificate chain now fails validation under the
// updated CRL."
func validatesUnderCRLs(chain []*x509.Certificate, crls CRLStore) bool {
	for _, cert := range chain {
		issuerCN := cert.Issuer.CommonName
		crl, ok := crls[issuerCN]
		if !ok {
			continue
		}
		if crl.Revokes(cert.SerialNumber) {
			return false
		}
	}
	return true
}

// prefixOfChain computes the leaf's delegated prefix: the path of
// intermediate CNs, root excluded, per spec.md §3's "the prefix of a
// certificate is the path of its issuers (concatenated common names,
// root excluded)." chain is leaf-first and, as with a TLS peer's
// presented chain, never includes the trust-anchor root itself — only
// the leaf and the intermediates above it — so chain[1:] is already
// exactly the intermediates to name; the path is that slice reversed
// to read root-to-leaf.
func prefixOfChain(chain []*x509.Certificate) []string {
	if len(chain) <= 1 {
		return nil
	}
	intermediates := chain[1:]
	out := make([]string, len(intermediates))
	for i, cert := range intermediates {
		out[len(intermediates)-1-i] = cert.Subject.CommonName
	}
	return out
}

// leafPermissions projects the leaf's permission set, defaulting to
// the empty set when the extension is absent.
func leafPermissions(leaf *x509.Certificate) (policy.Permission, error) {
	perms, err := policy.PermissionsOfCert(leaf)
	if err != nil {
		return 0, policyError("%v", err)
	}
	return perms, nil
}
