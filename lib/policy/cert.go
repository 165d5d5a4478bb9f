// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// SupportedVersion is the engine's currently supported policy
// extension version, spec.md §4.2's AV0.
const SupportedVersion int64 = 0

// Kind classifies a certificate by which extensions it carries, per
// spec.md §4.2.
type Kind int

const (
	KindDelegation Kind = iota
	KindVM
	KindCRL
)

func (k Kind) String() string {
	switch k {
	case KindVM:
		return "vm"
	case KindCRL:
		return "crl"
	default:
		return "delegation"
	}
}

// ContainsVM reports whether cert carries a vmimage extension.
func ContainsVM(cert *x509.Certificate) bool {
	_, ok := findExtension(cert, OIDVMImage)
	return ok
}

// ClassifyCert determines cert's [Kind]. spec.md §4.2 requires that a
// certificate never be simultaneously a VM cert and a CRL
// announcement; ClassifyCert enforces that instead of picking one
// silently.
func ClassifyCert(cert *x509.Certificate) (Kind, error) {
	isVM := ContainsVM(cert)
	isCRL := ContainsCRL(cert)
	if isVM && isCRL {
		return 0, fmt.Errorf("policy: certificate carries both vmimage and crl extensions")
	}
	if isCRL {
		return KindCRL, nil
	}
	if isVM {
		return KindVM, nil
	}
	return KindDelegation, nil
}

// VersionOfCert projects the version extension (suffix 0), required
// on every issued certificate.
func VersionOfCert(cert *x509.Certificate) (int64, error) {
	ext, ok := findExtension(cert, OIDVersion)
	if !ok {
		return 0, fmt.Errorf("policy: certificate carries no version extension")
	}
	s := cryptobyte.String(ext.Value)
	v, err := readInt64(&s)
	if err != nil {
		return 0, err
	}
	if err := finish(s); err != nil {
		return 0, err
	}
	return v, nil
}

// RequireSupportedVersion fails the chain, per spec.md §4.2, if cert's
// version extension does not equal [SupportedVersion].
func RequireSupportedVersion(cert *x509.Certificate) error {
	v, err := VersionOfCert(cert)
	if err != nil {
		return err
	}
	if v != SupportedVersion {
		return fmt.Errorf("policy: unsupported version %d, engine supports %d", v, SupportedVersion)
	}
	return nil
}

// PermissionsOfCert projects the permissions extension (suffix 42).
// Certificates carrying no permissions extension have the empty
// permission set.
func PermissionsOfCert(cert *x509.Certificate) (Permission, error) {
	ext, ok := findExtension(cert, OIDPermissions)
	if !ok {
		return 0, nil
	}
	return DecodePermissions(ext.Value)
}

// DelegationOfCert projects cert's resource-grant extensions (suffixes
// 1, 2, 3, 4, 5) into a [Delegation]. Any of the five may be absent;
// an absent vms/cpuids/memory extension leaves that field at its zero
// value (no grant on that axis), and an absent block extension leaves
// [Delegation.Block] nil.
func DelegationOfCert(cert *x509.Certificate) (Delegation, error) {
	var d Delegation

	if ext, ok := findExtension(cert, OIDVMs); ok {
		v, err := decodeVMs(ext.Value)
		if err != nil {
			return Delegation{}, fmt.Errorf("policy: vms extension: %w", err)
		}
		d.VMs = v
	}
	if ext, ok := findExtension(cert, OIDBridges); ok {
		v, err := decodeBridges(ext.Value)
		if err != nil {
			return Delegation{}, fmt.Errorf("policy: bridges extension: %w", err)
		}
		d.Bridges = v
	}
	if ext, ok := findExtension(cert, OIDBlock); ok {
		v, err := decodeBlock(ext.Value)
		if err != nil {
			return Delegation{}, fmt.Errorf("policy: block extension: %w", err)
		}
		d.Block = &v
	}
	if ext, ok := findExtension(cert, OIDCPUIDs); ok {
		v, err := decodeCPUIDs(ext.Value)
		if err != nil {
			return Delegation{}, fmt.Errorf("policy: cpuids extension: %w", err)
		}
		d.CPUIDs = v
	}
	if ext, ok := findExtension(cert, OIDMemory); ok {
		v, err := decodeMemory(ext.Value)
		if err != nil {
			return Delegation{}, fmt.Errorf("policy: memory extension: %w", err)
		}
		d.Memory = v
	}
	return d, nil
}

// VMOfCert projects a VM certificate's run-configuration extensions
// (suffixes 5 as requested_memory, 6, 7, 8, 9, 10) into a [VMConfig].
// The vmimage extension is required; VMOfCert returns an error if it
// is absent. Callers should first confirm [ContainsVM] or check
// [ClassifyCert] == [KindVM] before calling VMOfCert.
func VMOfCert(cert *x509.Certificate) (VMConfig, error) {
	var cfg VMConfig

	ext, ok := findExtension(cert, OIDVMImage)
	if !ok {
		return VMConfig{}, fmt.Errorf("policy: certificate carries no vmimage extension")
	}
	img, err := decodeImage(ext.Value)
	if err != nil {
		return VMConfig{}, fmt.Errorf("policy: vmimage extension: %w", err)
	}
	cfg.Image = img

	if ext, ok := findExtension(cert, OIDMemory); ok {
		v, err := decodeMemory(ext.Value)
		if err != nil {
			return VMConfig{}, fmt.Errorf("policy: memory extension: %w", err)
		}
		cfg.RequestedMemory = v
	}
	if ext, ok := findExtension(cert, OIDCPUID); ok {
		v, err := decodeCPUID(ext.Value)
		if err != nil {
			return VMConfig{}, fmt.Errorf("policy: cpuid extension: %w", err)
		}
		cfg.CPUID = v
	}
	if ext, ok := findExtension(cert, OIDNetwork); ok {
		v, err := decodeNetworks(ext.Value)
		if err != nil {
			return VMConfig{}, fmt.Errorf("policy: network extension: %w", err)
		}
		cfg.Networks = v
	}
	if ext, ok := findExtension(cert, OIDBlockDevice); ok {
		v, err := decodeBlockDevice(ext.Value)
		if err != nil {
			return VMConfig{}, fmt.Errorf("policy: block_device extension: %w", err)
		}
		cfg.BlockDevice = &v
	}
	if ext, ok := findExtension(cert, OIDArgv); ok {
		v, err := decodeArgv(ext.Value)
		if err != nil {
			return VMConfig{}, fmt.Errorf("policy: argv extension: %w", err)
		}
		cfg.Argv = v
	}
	return cfg, nil
}
