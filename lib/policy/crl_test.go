// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func issuerCert(t *testing.T) (*x509.Certificate, *ecdsa.PrivateKey) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tenant"},
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
	return cert, key
}

func TestCRLOfCertRoundTrip(t *testing.T) {
	issuer, key := issuerCert(t)

	template := &x509.RevocationList{
		Number:     big.NewInt(2),
		ThisUpdate: time.Now().Add(-time.Minute),
		NextUpdate: time.Now().Add(time.Hour),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(99), RevocationTime: time.Now()},
		},
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, issuer, key)
	if err != nil {
		t.Fatalf("CreateRevocationList: %v", err)
	}

	leaf := certWithExtensions([]pkix.Extension{
		{Id: OIDCRL, Value: der},
	})
	if !ContainsCRL(leaf) {
		t.Fatal("expected ContainsCRL")
	}

	crl, ok, err := CRLOfCert(leaf, "tenant")
	if err != nil {
		t.Fatalf("CRLOfCert: %v", err)
	}
	if !ok {
		t.Fatal("expected crl extension to be present")
	}
	if crl.Serial().Cmp(big.NewInt(2)) != 0 {
		t.Errorf("Serial() = %v, want 2", crl.Serial())
	}
	if !crl.Revokes(big.NewInt(99)) {
		t.Error("expected serial 99 to be revoked")
	}
	if crl.Revokes(big.NewInt(100)) {
		t.Error("did not expect serial 100 to be revoked")
	}
}

func TestCRLSerialSurfacedForStaleCheck(t *testing.T) {
	// Stale-serial rejection is the store's responsibility (lib/engine's
	// CRL store), not the codec's; this test only confirms the codec
	// surfaces the serial so the store can compare it.
	issuer, key := issuerCert(t)
	template := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now(),
		NextUpdate: time.Now().Add(time.Hour),
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, issuer, key)
	if err != nil {
		t.Fatalf("CreateRevocationList: %v", err)
	}
	crl, err := decodeCRL("tenant", der)
	if err != nil {
		t.Fatalf("decodeCRL: %v", err)
	}
	if crl.Serial().Cmp(big.NewInt(1)) != 0 {
		t.Errorf("Serial() = %v, want 1", crl.Serial())
	}
}
