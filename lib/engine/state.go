// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"crypto/x509"
	"io"
	"time"

	"github.com/ukvm-io/vmd/lib/policy"
	"github.com/ukvm-io/vmd/lib/vmid"
	"github.com/ukvm-io/vmd/lib/wire"
)

// SessionID identifies one accepted TLS or admin session for the
// lifetime of the connection. The daemon loop assigns these
// monotonically as connections are accepted.
type SessionID uint64

// Session is everything the engine tracks about one connected peer:
// its delegated prefix and permissions, and which VM ids it currently
// subscribes to for console or log output.
type Session struct {
	ID          SessionID
	Prefix      vmid.ID
	Permissions policy.Permission

	// IssuerCN is the Subject CN of the certificate chain's
	// issuing intermediate, recorded at handshake. No handler reads
	// it: a crl download request names its issuer in the command.
	IssuerCN string

	Console map[string]bool // vm id string -> subscribed
	Log     map[string]bool
}

func newSession(id SessionID, prefix vmid.ID, perms policy.Permission, issuerCN string) Session {
	return Session{
		ID:          id,
		Prefix:      prefix,
		Permissions: perms,
		IssuerCN:    issuerCN,
		Console:     map[string]bool{},
		Log:         map[string]bool{},
	}
}

// RunningVM is a live VM the engine has spawned and is tracking.
type RunningVM struct {
	ID        vmid.ID
	Config    policy.VMConfig
	Pid       int
	SpawnedAt time.Time

	// Chain is the certificate chain that authorized this VM, kept so
	// a later CRL install can re-validate it for revocation.
	Chain []*x509.Certificate

	// Owner is the session that requested creation, used only to
	// attribute log lines; the owning session may since have closed.
	Owner SessionID
}

// CRLStore maps issuer CN to the latest installed [policy.CRL] for
// that issuer, per spec.md §3's "mapping issuer-CN → latest CRL, plus
// a monotonic serial per issuer."
type CRLStore map[string]policy.CRL

// Install attempts to add crl to the store, rejecting a serial that is
// not strictly greater than the one already on file for that issuer —
// spec.md §4.5's "rejecting if its serial is not strictly greater than
// the stored one." Returns the updated store (a clone; the receiver is
// left untouched) and whether the install was accepted.
func (s CRLStore) Install(crl policy.CRL) (CRLStore, bool) {
	if existing, ok := s[crl.IssuerCN]; ok && existing.Serial().Cmp(crl.Serial()) >= 0 {
		return s, false
	}
	next := make(CRLStore, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[crl.IssuerCN] = crl
	return next, true
}

// HelperConn is the minimal surface [State] needs from a connected
// Unix helper socket: a single-writer stream the engine frames
// commands onto. Background feeders own the read side independently.
type HelperConn interface {
	io.Writer
}

// State is the engine's entire mutable state, per spec.md §3's Engine
// state tuple. See the package doc for why it carries no separate
// socket-equality predicate field, and for the clone-on-write
// discipline every handler in this package follows.
type State struct {
	WorkingDir string

	ConsoleConn HelperConn
	LogConn     HelperConn
	StatsConn   HelperConn // nil if the stats helper is not connected

	VMs      map[string]RunningVM // vmid string -> RunningVM
	Sessions map[SessionID]Session
	CRLs     CRLStore

	// PendingStats correlates an in-flight one-shot "statistics <id>"
	// request id (spec.md §4.5) to the session awaiting the stats
	// helper's reply. Entries are removed once the reply arrives.
	PendingStats map[uint32]SessionID

	WireVersion uint16
}

// NewState builds the initial engine state for a freshly started
// daemon. The three helper connections are supplied already dialed —
// see cmd/vmd, which per spec.md §4.6 must have the console and log
// sockets connected before the engine exists at all.
func NewState(workingDir string, console, log HelperConn, stats HelperConn) State {
	return State{
		WorkingDir:   workingDir,
		ConsoleConn:  console,
		LogConn:      log,
		StatsConn:    stats,
		VMs:          map[string]RunningVM{},
		Sessions:     map[SessionID]Session{},
		CRLs:         CRLStore{},
		PendingStats: map[uint32]SessionID{},
		WireVersion:  wire.Version,
	}
}

// withPendingStat returns a State whose PendingStats map is a clone of
// s.PendingStats with requestID mapped to sessionID.
func (s State) withPendingStat(requestID uint32, sessionID SessionID) State {
	next := s
	pending := make(map[uint32]SessionID, len(s.PendingStats)+1)
	for k, v := range s.PendingStats {
		pending[k] = v
	}
	pending[requestID] = sessionID
	next.PendingStats = pending
	return next
}

// withoutPendingStat returns a State whose PendingStats map is a clone
// of s.PendingStats with requestID removed, and the session it mapped
// to, if any.
func (s State) withoutPendingStat(requestID uint32) (State, SessionID, bool) {
	sessionID, ok := s.PendingStats[requestID]
	if !ok {
		return s, 0, false
	}
	next := s
	pending := make(map[uint32]SessionID, len(s.PendingStats))
	for k, v := range s.PendingStats {
		if k == requestID {
			continue
		}
		pending[k] = v
	}
	next.PendingStats = pending
	return next, sessionID, true
}

// withVM returns a State whose VMs map is a clone of s.VMs with id set
// to vm.
func (s State) withVM(id string, vm RunningVM) State {
	next := s
	vms := make(map[string]RunningVM, len(s.VMs)+1)
	for k, v := range s.VMs {
		vms[k] = v
	}
	vms[id] = vm
	next.VMs = vms
	return next
}

// withoutVM returns a State whose VMs map is a clone of s.VMs with id
// removed.
func (s State) withoutVM(id string) State {
	next := s
	vms := make(map[string]RunningVM, len(s.VMs))
	for k, v := range s.VMs {
		if k == id {
			continue
		}
		vms[k] = v
	}
	next.VMs = vms
	return next
}

// withSession returns a State whose Sessions map is a clone of
// s.Sessions with session installed under its own ID.
func (s State) withSession(session Session) State {
	next := s
	sessions := make(map[SessionID]Session, len(s.Sessions)+1)
	for k, v := range s.Sessions {
		sessions[k] = v
	}
	sessions[session.ID] = session
	next.Sessions = sessions
	return next
}

// withoutSession returns a State whose Sessions map is a clone of
// s.Sessions with id removed.
func (s State) withoutSession(id SessionID) State {
	next := s
	sessions := make(map[SessionID]Session, len(s.Sessions))
	for k, v := range s.Sessions {
		if k == id {
			continue
		}
		sessions[k] = v
	}
	next.Sessions = sessions
	return next
}

// withCRLs returns a State with its CRL store replaced.
func (s State) withCRLs(crls CRLStore) State {
	next := s
	next.CRLs = crls
	return next
}

// vmsUnder returns the live VMs whose id is id itself or a descendant
// of id — the "live-VM draw under that prefix" spec.md §3 and §4.5
// define the resource algebra over.
func (s State) vmsUnder(prefix vmid.ID) []RunningVM {
	var out []RunningVM
	for _, vm := range s.VMs {
		if vm.ID.Equal(prefix) || vm.ID.HasPrefix(prefix) {
			out = append(out, vm)
		}
	}
	return out
}

// subscribers returns the sessions currently subscribed to id's
// console or log stream, selected by which field function is passed.
func (s State) subscribers(id string, field func(Session) map[string]bool) []SessionID {
	var out []SessionID
	for sessionID, session := range s.Sessions {
		if field(session)[id] {
			out = append(out, sessionID)
		}
	}
	return out
}
