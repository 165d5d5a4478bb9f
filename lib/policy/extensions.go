// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/x509/pkix"

	"golang.org/x/crypto/cryptobyte"
)

// EncodeVersion builds the version extension value (suffix 0).
func EncodeVersion(version int64) []byte {
	var b cryptobyte.Builder
	b.AddASN1Int64(version)
	return b.BytesOrPanic()
}

// DelegationExtensions builds the pkix.Extension list for a delegation
// certificate's resource grants (suffixes 0, 1, 2, 3, 4, 5), for use
// by test fixtures and certificate-issuing tooling.
func DelegationExtensions(version int64, d Delegation) []pkix.Extension {
	exts := []pkix.Extension{
		{Id: OIDVersion, Value: EncodeVersion(version)},
		{Id: OIDVMs, Value: encodeVMs(d.VMs)},
		{Id: OIDCPUIDs, Value: encodeCPUIDs(d.CPUIDs)},
		{Id: OIDMemory, Value: encodeMemory(d.Memory)},
	}
	if len(d.Bridges) > 0 {
		exts = append(exts, pkix.Extension{Id: OIDBridges, Value: encodeBridges(d.Bridges)})
	}
	if d.Block != nil {
		exts = append(exts, pkix.Extension{Id: OIDBlock, Value: encodeBlock(*d.Block)})
	}
	return exts
}

// VMExtensions builds the pkix.Extension list for a VM certificate's
// run configuration (suffixes 0, 5, 6, 7, 8, 9, 10).
func VMExtensions(version int64, cfg VMConfig) []pkix.Extension {
	exts := []pkix.Extension{
		{Id: OIDVersion, Value: EncodeVersion(version)},
		{Id: OIDVMImage, Value: encodeImage(cfg.Image)},
		{Id: OIDCPUID, Value: encodeCPUID(cfg.CPUID)},
		{Id: OIDMemory, Value: encodeMemory(cfg.RequestedMemory)},
	}
	if len(cfg.Networks) > 0 {
		exts = append(exts, pkix.Extension{Id: OIDNetwork, Value: encodeNetworks(cfg.Networks)})
	}
	if cfg.BlockDevice != nil {
		exts = append(exts, pkix.Extension{Id: OIDBlockDevice, Value: encodeBlockDevice(*cfg.BlockDevice)})
	}
	if len(cfg.Argv) > 0 {
		exts = append(exts, pkix.Extension{Id: OIDArgv, Value: encodeArgv(cfg.Argv)})
	}
	return exts
}

// PermissionExtension builds the permissions extension (suffix 42).
func PermissionExtension(p Permission) pkix.Extension {
	return pkix.Extension{Id: OIDPermissions, Value: EncodePermissions(p)}
}
