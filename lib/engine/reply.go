// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/ukvm-io/vmd/lib/codec"
)

// infoEntry is the CBOR shape of one VM in an info reply: enough to
// identify and describe the VM without forcing the client to re-derive
// it from a [policy.VMConfig], which carries the raw image payload the
// client has no use for once the VM is already running.
type infoEntry struct {
	ID              string   `cbor:"id"`
	CPUID           int64    `cbor:"cpuid"`
	RequestedMemory int64    `cbor:"requested_memory"`
	BlockDevice     string   `cbor:"block_device,omitempty"`
	Networks        []string `cbor:"networks,omitempty"`
	Image           string   `cbor:"image"`
}

func encodeInfoReply(vms []RunningVM) ([]byte, error) {
	entries := make([]infoEntry, len(vms))
	for i, vm := range vms {
		entry := infoEntry{
			ID:              vm.ID.String(),
			CPUID:           vm.Config.CPUID,
			RequestedMemory: vm.Config.RequestedMemory,
			Networks:        vm.Config.Networks,
			Image:           vm.Config.Image.Kind.String(),
		}
		if vm.Config.BlockDevice != nil {
			entry.BlockDevice = *vm.Config.BlockDevice
		}
		entries[i] = entry
	}
	return codec.Marshal(entries)
}
