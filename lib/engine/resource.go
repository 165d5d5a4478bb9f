// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"crypto/x509"

	"github.com/ukvm-io/vmd/lib/policy"
	"github.com/ukvm-io/vmd/lib/vmid"
)

// checkResourceAlgebra validates a candidate VM's configuration
// against the delegation resource algebra of spec.md §3 and §4.5:
// walking the ancestor prefixes from the outermost down to the VM's
// own prefix, each ancestor prefix's delegated vms/memory/cpuids/
// bridges/block budget must have room for the new VM in addition to
// every other live VM already drawing against that same ancestor.
//
// ancestors lists the non-root prefixes root-side first, and
// delegations[i] is the projected [policy.Delegation] governing
// ancestors[i] (see [ancestorDelegations]).
//
// Returns the first violated constraint as a human-readable message,
// per spec.md §4.5's "reject with a human-readable message naming the
// first violated constraint."
func checkResourceAlgebra(state State, id vmid.ID, cfg policy.VMConfig, ancestors []vmid.ID, delegations []policy.Delegation) *Error {
	for i, prefix := range ancestors {
		d := delegations[i]

		live := state.vmsUnder(prefix)

		count := int64(len(live)) + 1
		if count > d.VMs {
			return policyError("prefix %q: vm count %d exceeds delegated vms %d", prefix, count, d.VMs)
		}

		memory := cfg.RequestedMemory
		for _, vm := range live {
			memory += vm.Config.RequestedMemory
		}
		if memory > d.Memory {
			return policyError("memory: %d > %d remaining", cfg.RequestedMemory, d.Memory-(memory-cfg.RequestedMemory))
		}

		if !containsInt64(d.CPUIDs, cfg.CPUID) {
			return policyError("prefix %q: cpuid %d not in delegated cpuids", prefix, cfg.CPUID)
		}

		for _, network := range cfg.Networks {
			if !containsBridge(d.Bridges, network) {
				return policyError("prefix %q: bridge %q not delegated", prefix, network)
			}
		}

		if cfg.BlockDevice != nil {
			if d.Block == nil {
				return policyError("prefix %q: no block budget delegated", prefix)
			}
			used := int64(0)
			for _, vm := range live {
				if vm.Config.BlockDevice != nil {
					used++
				}
			}
			if used+1 > *d.Block {
				return policyError("prefix %q: block device budget %d exhausted", prefix, *d.Block)
			}
		}
	}
	return nil
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsBridge(bridges []policy.Bridge, name string) bool {
	for _, b := range bridges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// ancestorDelegations projects [policy.Delegation] for each ancestor
// intermediate certificate in chain. ancestors excludes the root
// prefix — the trust anchor carries no delegation certificate of its
// own and is administratively unconstrained — so it lines up exactly
// with chain's intermediates. chain is leaf-first; its entry at index
// i+1 corresponds to ancestors[len(ancestors)-1-i] under the
// convention that the immediate issuer of the leaf governs the
// deepest prefix.
func ancestorDelegations(chain []*x509.Certificate, ancestors []vmid.ID) ([]policy.Delegation, error) {
	if len(chain) < len(ancestors)+1 {
		return nil, policyError("certificate chain has fewer intermediates than id has ancestors")
	}
	out := make([]policy.Delegation, len(ancestors))
	for i := range ancestors {
		// chain[0] is the leaf; chain[1] is the leaf's immediate
		// issuer, which governs the deepest ancestor prefix.
		cert := chain[i+1]
		d, err := policy.DelegationOfCert(cert)
		if err != nil {
			return nil, policyError("%v", err)
		}
		out[len(ancestors)-1-i] = d
	}
	return out, nil
}
