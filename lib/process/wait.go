// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ExitKind classifies how a reaped child process terminated, matching
// the three cases spec.md §4.5 names for handle_shutdown's terminal
// log line: "exited N", "signalled N", "stopped N".
type ExitKind int

const (
	// Exited means the process called exit() or returned from main;
	// Code is the exit status.
	Exited ExitKind = iota
	// Signalled means the process was terminated by a signal; Code is
	// the signal number.
	Signalled
	// Stopped means the process was stopped (not terminated) by a
	// signal; Code is the signal number. Wait4 with no WUNTRACED
	// never reports this, but the bit exists in the wait status format
	// so the classification stays complete.
	Stopped
)

// String renders the exit reason the way handle_shutdown's terminal
// log line names it: "exited 0", "signalled 15", "stopped 19".
func (k ExitKind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Signalled:
		return "signalled"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitReason is the classified outcome of a reaped child process.
type ExitReason struct {
	Kind ExitKind
	Code int
}

// String renders "exited N" / "signalled N" / "stopped N".
func (r ExitReason) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.Code)
}

// classify converts a raw wait status into an ExitReason.
func classify(status unix.WaitStatus) ExitReason {
	switch {
	case status.Signaled():
		return ExitReason{Kind: Signalled, Code: int(status.Signal())}
	case status.Stopped():
		return ExitReason{Kind: Stopped, Code: int(status.StopSignal())}
	default:
		return ExitReason{Kind: Exited, Code: status.ExitStatus()}
	}
}

// Signal sends sig to pid, tolerating ESRCH (the process has already
// exited and been reaped) as success. Used to force-terminate a VM
// whose authorizing chain was just revoked or preempted — the
// background [Wait] task for that pid still runs handle_shutdown's
// bookkeeping once the signal takes effect.
func Signal(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("process: kill(%d, %v): %w", pid, sig, err)
	}
	return nil
}

// Wait blocks until pid exits and returns its classified exit reason.
// This is the dedicated wait task spec.md §5 reserves exclusively for
// the pid's owning engine task — only one caller may ever Wait on a
// given pid, since wait4 consumes the child's exit status exactly
// once.
//
// Retries on EINTR, which a blocking wait4 can return if the calling
// goroutine's thread receives an unrelated signal.
func Wait(pid int) (ExitReason, error) {
	var status unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &status, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return ExitReason{}, fmt.Errorf("process: wait4(%d): %w", pid, err)
		}
		return classify(status), nil
	}
}
