// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package spawn defines the abstract contract between the engine and
// the unikernel hypervisor, per spec.md §1's "the hypervisor invocation
// (we specify the abstract spawn contract only)." The engine never
// shells out itself; it calls a [Hypervisor] and only records the
// Handle it returns.
package spawn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/ukvm-io/vmd/lib/policy"
)

// Request is everything a [Hypervisor] needs to boot one unikernel.
type Request struct {
	// ID is the VM's full id (spec.md §3), used only to name the
	// image file and log lines; the hypervisor does not interpret it.
	ID string
	// ImagePath is the path of the (already decompressed) unikernel
	// image file written into the daemon's working directory.
	ImagePath string
	Config    policy.VMConfig
}

// Handle is what the engine keeps after a successful spawn: the pid to
// wait on and signal, and the stdout stream to relay to the console
// helper.
type Handle struct {
	Pid    int
	Stdout *os.File
}

// Hypervisor boots one unikernel process per [Request] and returns a
// [Handle] the caller owns — process.Wait(handle.Pid) reaps it exactly
// once, and handle.Stdout is read until EOF by the console relay.
type Hypervisor interface {
	Spawn(ctx context.Context, req Request) (Handle, error)
}

// Exec is the concrete [Hypervisor] that execs a configured unikernel
// monitor binary per VM, modeled on the launch-and-detach pattern
// real hypervisor wrappers use: start the process, capture its stdout
// through a pipe, and release it from this process's group so it
// survives independently of the daemon's own lifetime.
type Exec struct {
	// Binary is the unikernel monitor executable, e.g. a ukvm/solo5
	// tender binary appropriate to the image's architecture.
	Binary string
}

// Spawn implements [Hypervisor]. ctx is not used: the process is
// started with exec.Command, and the unikernel outlives this call.
func (e Exec) Spawn(ctx context.Context, req Request) (Handle, error) {
	_ = ctx
	args := e.argsFor(req)
	cmd := exec.Command(e.Binary, args...)

	stdoutRead, stdoutWrite, err := os.Pipe()
	if err != nil {
		return Handle{}, fmt.Errorf("spawn: stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutWrite
	cmd.Stderr = stdoutWrite
	// Detach into its own process group so the unikernel is not
	// killed by a signal sent to the daemon's group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		stdoutWrite.Close()
		stdoutRead.Close()
		return Handle{}, fmt.Errorf("spawn %s: %w", req.ID, err)
	}
	// The write end belongs to the child now; this process only reads.
	stdoutWrite.Close()

	return Handle{Pid: cmd.Process.Pid, Stdout: stdoutRead}, nil
}

// argsFor builds the monitor's argv: the requested memory and cpuid,
// attached networks and block device if any, then the image path,
// then the image's own argv override.
func (e Exec) argsFor(req Request) []string {
	args := []string{
		"--mem", fmt.Sprintf("%d", req.Config.RequestedMemory),
		"--cpu", fmt.Sprintf("%d", req.Config.CPUID),
	}
	for _, net := range req.Config.Networks {
		args = append(args, "--net", net)
	}
	if req.Config.BlockDevice != nil {
		args = append(args, "--disk", *req.Config.BlockDevice)
	}
	args = append(args, req.ImagePath)
	if len(req.Config.Argv) > 0 {
		args = append(args, req.Config.Argv...)
	}
	return args
}
