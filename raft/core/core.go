// Package core implements the Raft node state machine: term and role
// tracking, election timeouts, heartbeat scheduling, and the vote and
// heartbeat ingress rules. It does not know how packets travel between
// nodes or how peers are discovered; those are supplied by the Sender and
// Membership interfaces.
package core

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkermao/raftcore/raft/core/conf"
	"github.com/thinkermao/raftcore/raft/core/events"
	"github.com/thinkermao/raftcore/raft/core/packet"
	"github.com/thinkermao/raftcore/raft/core/timeout"
	"github.com/thinkermao/raftcore/raft/core/timer"
)

// watchdogTimer is the single named timer this package ever schedules. A
// LEADER uses it to pace outgoing heartbeats; a FOLLOWER or CANDIDATE uses
// it as the deadline after which it promotes itself. At most one of them is
// ever active, satisfying the invariant that a role change clears whatever
// timer it inherited before arming its own.
const watchdogTimer = "heartbeat"

// Sender is the outbound half of a transport: the single sink every
// envelope this Machine produces is handed to. The Machine does not
// enumerate peers; for a Broadcast, Sender itself (or whatever it forwards
// to) is responsible for fanning the envelope out to every peer.
type Sender interface {
	Send(p *packet.Packet) bool
}

// Membership reports how many voting peers the cluster currently has,
// including this node. It is consulted only to compute the quorum size.
type Membership interface {
	Size() int
}

// Machine is one Raft node's state machine: term, role, believed leader,
// and the bookkeeping a campaign needs (who it voted for, how many votes
// it has gathered), plus the timer and event-bus plumbing that drives
// transitions. All exported methods serialize through a single mutex, per
// the single-writer model this package generalizes from the source
// machine's own per-core lock.
type Machine struct {
	mu sync.Mutex

	name string

	term     uint64
	role     Role
	leader   *string // nil: unknown. &"": election in flight. &name: known.
	votedFor *string
	granted  int

	timers     *timer.Registry
	bus        *events.Bus
	timeouts   *timeout.Generator
	sender     Sender
	membership Membership

	stopped bool
}

// New constructs a Machine in the FOLLOWER role with no known leader and
// arms its initial watchdog timer. cfg must already satisfy Verify.
func New(cfg conf.Config, sender Sender, membership Membership) (*Machine, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("core: sender cannot be nil")
	}
	if membership == nil {
		return nil, fmt.Errorf("core: membership cannot be nil")
	}

	m := &Machine{
		name:       cfg.ID,
		role:       Follower,
		timers:     timer.NewRegistry(),
		bus:        events.New(),
		timeouts:   cfg.Generator(),
		sender:     sender,
		membership: membership,
	}
	m.wireDerivedReactions()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeatLocked(nil)

	log.WithFields(log.Fields{"name": m.name, "term": m.term}).Debug("core: machine started")
	return m, nil
}

// Bus exposes the node's lifecycle event dispatcher so a transport, a
// logger, or a test can observe term/state/leader changes, cast votes, and
// raw ingress without the Machine knowing any of them exist.
func (m *Machine) Bus() *events.Bus {
	return m.bus
}

// Name returns the node's own identity.
func (m *Machine) Name() string {
	return m.name
}

// Read ingests a packet this node received from a peer, applying the term
// reconciliation, leader recognition, and kind-dispatch rules. It reports
// whether the packet was accepted (false if this Machine has already
// ended, or the packet was stale).
func (m *Machine) Read(p *packet.Packet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	return m.readLocked(p)
}

// Write hands a packet directly to the sender, bypassing ingress rules.
// It is the stub a directed reply (a Voted packet, say) is sent through;
// the transport completes the routing using the packet's To field.
func (m *Machine) Write(p *packet.Packet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	return m.sender.Send(p)
}

// Broadcast constructs an envelope of kind carrying payload (which must be
// the payload type that matches kind — packet.VotePayload for Vote,
// packet.HeartbeatPayload for Heartbeat, or []byte for RPC; Voted is never
// broadcast, only written directly) stamped with this node's current
// state/term/name, and hands it to Sender once. The Sender, not this
// Machine, is responsible for reaching every peer.
func (m *Machine) Broadcast(kind packet.Kind, payload interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	return m.broadcastLocked(kind, payload)
}

// Promote begins a new campaign: bumps the term, becomes CANDIDATE, votes
// for itself, and broadcasts a vote solicitation. It is exported so a
// transport-level election trigger (or a test) can invoke it directly, in
// addition to the watchdog timer invoking it internally.
func (m *Machine) Promote() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.promoteLocked()
}

// Heartbeat arms or adjusts the watchdog timer. With no argument it
// generates a fresh duration from the class appropriate to the current
// role; with one argument it uses that duration instead (used when a
// follower's heartbeat packet carries the leader's own cadence).
func (m *Machine) Heartbeat(duration ...time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	var d *time.Duration
	if len(duration) > 0 {
		d = &duration[0]
	}
	m.heartbeatLocked(d)
}

// Role reports the node's current role.
func (m *Machine) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// Term reports the node's current term.
func (m *Machine) Term() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.term
}

// Leader reports the believed leader's name, or nil if unknown.
func (m *Machine) Leader() *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leader
}

// VotedFor reports the candidate this node has voted for in the current
// term, or nil if it has not voted yet. It exists for embedders that
// persist the vote record (see raft.Node.WithPersistence); it is not part
// of the ingress rules themselves.
func (m *Machine) VotedFor() *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.votedFor
}

// End stops the Machine: clears every timer, clears the event bus, marks
// the role STOPPED, and fails every subsequent call. It returns true the
// first time it is called and false on any call after (the Machine was
// already stopped).
func (m *Machine) End() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.stopped = true
	m.timers.End()
	old := m.role
	m.role = Stopped
	m.bus.EmitStateChange(events.StateChange{New: Stopped, Old: old})
	m.bus.Clear()
	log.WithField("name", m.name).Debug("core: machine ended")
	return true
}
