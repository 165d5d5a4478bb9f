// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/ukvm-io/vmd/lib/policy"
)

// testIssuer is a self-signed root used as the trust anchor in engine
// tests.
type testIssuer struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newTestRoot(t *testing.T) testIssuer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "root"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return testIssuer{cert: cert, key: key}
}

// issueIntermediate signs a non-leaf certificate under parent, carrying
// the given delegation and permission extensions.
func issueIntermediate(t *testing.T, serial int64, parent testIssuer, cn string, d policy.Delegation, perms policy.Permission) testIssuer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	exts := policy.DelegationExtensions(policy.SupportedVersion, d)
	exts = append(exts, policy.PermissionExtension(perms))
	template := &x509.Certificate{
		SerialNumber:    big.NewInt(serial),
		Subject:         pkix.Name{CommonName: cn},
		Issuer:          parent.cert.Subject,
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(time.Hour),
		IsCA:            true,
		KeyUsage:        x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtraExtensions: exts,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent.cert, &key.PublicKey, parent.key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return testIssuer{cert: cert, key: key}
}

// issueLeaf signs a leaf certificate under parent. exts is expected to
// already include the version extension (e.g. from
// [policy.VMExtensions] or [policy.DelegationExtensions]); this helper
// only adds the permission extension on top.
func issueLeaf(t *testing.T, serial int64, parent testIssuer, cn string, perms policy.Permission, exts []pkix.Extension) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	allExts := append(append([]pkix.Extension{}, exts...), policy.PermissionExtension(perms))
	template := &x509.Certificate{
		SerialNumber:    big.NewInt(serial),
		Subject:         pkix.Name{CommonName: cn},
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(time.Hour),
		ExtraExtensions: allExts,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent.cert, &key.PublicKey, parent.key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}

func testRoots(root testIssuer) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(root.cert)
	return pool
}

func chainOf(leaf *x509.Certificate, intermediates ...testIssuer) []*x509.Certificate {
	chain := make([]*x509.Certificate, 0, len(intermediates)+1)
	chain = append(chain, leaf)
	for i := len(intermediates) - 1; i >= 0; i-- {
		chain = append(chain, intermediates[i].cert)
	}
	return chain
}
