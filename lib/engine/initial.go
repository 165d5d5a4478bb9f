// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"crypto/x509"
	"time"

	"github.com/ukvm-io/vmd/lib/policy"
	"github.com/ukvm-io/vmd/lib/vmid"
)

// Action is the next thing the daemon loop should do with a session
// after [HandleInitial] classifies it, per spec.md §4.5.
type Action int

const (
	// ActionClose: the session performed a one-shot administrative
	// action (CRL install) and should now be closed.
	ActionClose Action = iota
	// ActionLoop: the session is a subscriber/admin connection; enter
	// the command loop with the computed prefix and permissions.
	ActionLoop
	// ActionCreate: the session presented a VM certificate that
	// passed authorization; spawn the VM, then close the session.
	ActionCreate
)

// PendingVM is the VM spawn request produced when [HandleInitial]
// returns [ActionCreate].
type PendingVM struct {
	ID          vmid.ID
	Config      policy.VMConfig
	ForceCreate bool
	Chain       []*x509.Certificate
}

// InitialResult is what [HandleInitial] decided for one freshly
// authenticated session.
type InitialResult struct {
	Action      Action
	Prefix      vmid.ID
	Permissions policy.Permission
	VM          *PendingVM    // non-nil only when Action == ActionCreate
	Revoked     []RunningVM   // non-empty only when a CRL install revoked live VMs
	Preempted   []RunningVM   // non-empty only when Action == ActionCreate and Force_create preempted an incumbent
}

// HandleInitial is the engine's entry point for a newly authenticated
// TLS session, spec.md §4.5's handle_initial. chain is leaf-first and
// must already be structurally parsed (crypto/x509.Certificate); the
// TLS handshake itself (renegotiation, peer chain retrieval) is
// cmd/vmd's responsibility.
//
// An intermediate carrying a Force_create request is expressed by the
// leaf certificate's own permission set including [policy.PermForceCreate]
// — spec.md's tag space names Create and Force_create as independent
// command tags, but authorization for either draws from the same
// leaf permission set.
func HandleInitial(state State, session SessionID, chain []*x509.Certificate, roots *x509.CertPool, now time.Time) (State, []Output, InitialResult, error) {
	if err := verifyChain(chain, roots, state.CRLs, now); err != nil {
		return state, nil, InitialResult{}, err
	}

	leaf := chain[0]
	if err := policy.RequireSupportedVersion(leaf); err != nil {
		return state, nil, InitialResult{}, policyError("%v", err)
	}

	perms, err := leafPermissions(leaf)
	if err != nil {
		return state, nil, InitialResult{}, err
	}
	prefix, err := vmid.New(prefixOfChain(chain)...)
	if err != nil {
		return state, nil, InitialResult{}, policyError("invalid prefix: %v", err)
	}

	kind, err := policy.ClassifyCert(leaf)
	if err != nil {
		return state, nil, InitialResult{}, policyError("%v", err)
	}

	switch kind {
	case policy.KindCRL:
		return handleCRLAnnouncement(state, session, leaf, perms, now)
	case policy.KindVM:
		return handleVMCreate(state, leaf, chain, prefix, perms)
	default:
		sess := newSession(session, prefix, perms, issuerCNOf(chain))
		state = state.withSession(sess)
		return state, nil, InitialResult{Action: ActionLoop, Prefix: prefix, Permissions: perms}, nil
	}
}

// issuerCNOf returns the Subject CN of chain's immediate issuing
// intermediate — chain[1], since chain is leaf-first — or the leaf's
// own Issuer CN when it has no intermediates above it (a leaf signed
// directly by the root).
func issuerCNOf(chain []*x509.Certificate) string {
	if len(chain) > 1 {
		return chain[1].Subject.CommonName
	}
	return chain[0].Issuer.CommonName
}

func handleCRLAnnouncement(state State, session SessionID, leaf *x509.Certificate, perms policy.Permission, now time.Time) (State, []Output, InitialResult, error) {
	if !perms.Has(policy.PermCrl) {
		return state, nil, InitialResult{}, policyError("permission denied: Crl required")
	}
	crl, ok, err := policy.CRLOfCert(leaf, leaf.Issuer.CommonName)
	if err != nil {
		return state, nil, InitialResult{}, policyError("%v", err)
	}
	if !ok {
		return state, nil, InitialResult{}, policyError("certificate classified as crl but carries no crl extension")
	}

	next, installed := state.CRLs.Install(crl)
	if !installed {
		return state, nil, InitialResult{}, conflictError("stale revocation list")
	}
	state = state.withCRLs(next)

	state, revoked := revokeNowInvalidVMs(state)
	return state, nil, InitialResult{Action: ActionClose, Revoked: revoked}, nil
}

// revokeNowInvalidVMs drops every live VM whose authorizing chain no
// longer validates under state.CRLs from the engine's bookkeeping —
// spec.md §4.5's revocation cascade. It does not kill the underlying
// processes: the caller (cmd/vmd) must send each dropped VM's pid a
// kill signal itself, using the Pid recorded on the [RunningVM] it
// held before this call. The eventual process exit still drives
// [HandleShutdown] for the terminal log line and pid bookkeeping.
func revokeNowInvalidVMs(state State) (State, []RunningVM) {
	var revoked []RunningVM
	for id, vm := range state.VMs {
		if validatesUnderCRLs(vm.Chain, state.CRLs) {
			continue
		}
		revoked = append(revoked, vm)
		state = dropVM(state, id)
	}
	return state, revoked
}

func handleVMCreate(state State, leaf *x509.Certificate, chain []*x509.Certificate, prefix vmid.ID, perms policy.Permission) (State, []Output, InitialResult, error) {
	if !perms.Has(policy.PermCreate) && !perms.Has(policy.PermForceCreate) {
		return state, nil, InitialResult{}, policyError("permission denied: Create or Force_create required")
	}
	cfg, err := policy.VMOfCert(leaf)
	if err != nil {
		return state, nil, InitialResult{}, policyError("%v", err)
	}

	name := leaf.Subject.CommonName
	id, err := prefix.Append(name)
	if err != nil {
		return state, nil, InitialResult{}, policyError("invalid vm name %q: %v", name, err)
	}

	// id.Ancestors() always starts with the empty root prefix, which
	// names the trust anchor itself — it carries no delegation
	// certificate in chain and is treated as administratively
	// unconstrained, so only the non-root ancestors are walked here.
	ancestors := id.Ancestors()[1:]
	delegations, err := ancestorDelegations(chain, ancestors)
	if err != nil {
		return state, nil, InitialResult{}, err
	}
	if violation := checkResourceAlgebra(state, id, cfg, ancestors, delegations); violation != nil {
		return state, nil, InitialResult{}, violation
	}

	forceCreate := perms.Has(policy.PermForceCreate)
	incumbent, exists := state.VMs[id.String()]

	var preempted []RunningVM
	switch {
	case !exists:
		// next action is Create(continuation): fall through.
	case exists && forceCreate:
		preempted = append(preempted, incumbent)
		state = dropVM(state, id.String())
	default:
		return state, nil, InitialResult{}, conflictError("already exists")
	}

	pending := &PendingVM{ID: id, Config: cfg, ForceCreate: forceCreate, Chain: chain}
	result := InitialResult{Action: ActionCreate, Prefix: prefix, Permissions: perms, VM: pending, Preempted: preempted}
	return state, nil, result, nil
}

// dropVM removes id from state.VMs and drops every session's
// subscription to its console/log streams. It does not signal the
// underlying process — callers that already hold the pid are
// responsible for that. The eventual wait-task completion still runs
// [HandleShutdown], which pushes the terminal log line; dropVM only
// performs the bookkeeping that must happen before a Force_create or
// CRL-driven preemption proceeds.
func dropVM(state State, id string) State {
	for _, sessionID := range state.subscribers(id, func(s Session) map[string]bool { return s.Console }) {
		session := state.Sessions[sessionID]
		console := make(map[string]bool, len(session.Console))
		for k, v := range session.Console {
			if k != id {
				console[k] = v
			}
		}
		session.Console = console
		state = state.withSession(session)
	}
	for _, sessionID := range state.subscribers(id, func(s Session) map[string]bool { return s.Log }) {
		session := state.Sessions[sessionID]
		logs := make(map[string]bool, len(session.Log))
		for k, v := range session.Log {
			if k != id {
				logs[k] = v
			}
		}
		session.Log = logs
		state = state.withSession(session)
	}
	return state.withoutVM(id)
}
