// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ukvm-io/vmd/lib/image"
	"github.com/ukvm-io/vmd/lib/spawn"
	"github.com/ukvm-io/vmd/lib/wire"
)

// Spawned is what the daemon loop passes back into [CompleteSpawn]
// once it has actually invoked the hypervisor for a [PendingVM]
// returned by [HandleInitial] — the engine describes the work, the
// daemon loop performs the I/O, per the package doc's no-direct-I/O
// discipline.
type Spawned struct {
	VM     PendingVM
	Handle spawn.Handle
	Owner  SessionID
}

// ImagePath returns the path a pending VM's image should be written
// to before [spawn.Hypervisor.Spawn] is invoked, per spec.md §4.5's
// "writes the image to a working-directory file named by id." The
// filename uses the id's path form with "/" replaced so it stays a
// single path component.
func ImagePath(workingDir string, vm PendingVM) string {
	name := strings.ReplaceAll(vm.ID.String(), "/", "_")
	return filepath.Join(workingDir, name+".img")
}

// PrepareImage decompresses (if needed) and writes a pending VM's
// image to its working-directory file, returning the path the
// hypervisor should boot. Call this before invoking a
// [spawn.Hypervisor], then pass the resulting [spawn.Handle] to
// [CompleteSpawn].
func PrepareImage(workingDir string, vm PendingVM) (string, error) {
	path := ImagePath(workingDir, vm)
	if err := image.WriteTo(path, vm.Config.Image); err != nil {
		return "", fmt.Errorf("engine: prepare image for %s: %w", vm.ID, err)
	}
	return path, nil
}

// CompleteSpawn registers a freshly spawned VM in state and emits the
// stats/console registration commands spec.md §4.5 requires: "sends
// add pid to the stats helper and attach id to the console helper."
// The background wait on handle.Pid is the daemon loop's
// responsibility (lib/process.Wait); its result feeds [HandleShutdown].
func CompleteSpawn(state State, spawned Spawned, now time.Time) (State, []Output) {
	id := spawned.VM.ID.String()
	vm := RunningVM{
		ID:        spawned.VM.ID,
		Config:    spawned.VM.Config,
		Pid:       spawned.Handle.Pid,
		SpawnedAt: now,
		Chain:     spawned.VM.Chain,
		Owner:     spawned.Owner,
	}
	state = state.withVM(id, vm)

	var outputs []Output
	if state.StatsConn != nil {
		body := wire.EncodePidCommand(id, spawned.Handle.Pid)
		outputs = append(outputs, toStatsHelper(wire.NewFrame(state.WireVersion, wire.TagAddPid, body)))
	}
	attachBody := wire.EncodeEvent(id, nil)
	outputs = append(outputs, toConsoleHelper(wire.NewFrame(state.WireVersion, wire.TagAttach, attachBody)))

	return state, outputs
}
