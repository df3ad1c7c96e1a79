// Package raft is the public façade: it ties a core.Machine together with
// the out-of-scope collaborators (transport, membership) the spec leaves
// to surrounding code, and exposes the construction-option surface of §6
// (functional options, or a dynamic map for parity with the source).
package raft

import (
	"time"

	"github.com/google/uuid"

	"github.com/thinkermao/raftcore/raft/config"
	"github.com/thinkermao/raftcore/raft/core"
	"github.com/thinkermao/raftcore/raft/core/conf"
	"github.com/thinkermao/raftcore/raft/core/events"
	"github.com/thinkermao/raftcore/raft/core/packet"
	"github.com/thinkermao/raftcore/raft/persist"
)

// Re-export the core's role constants and types so embedders need not
// import raft/core/packet or raft/core directly for common use.
type (
	Role   = core.Role
	Packet = packet.Packet
	Kind   = packet.Kind
)

const (
	Follower  = core.Follower
	Candidate = core.Candidate
	Leader    = core.Leader
	Stopped   = core.Stopped
)

const (
	Heartbeat = packet.Heartbeat
	Vote      = packet.Vote
	Voted     = packet.Voted
	RPC       = packet.RPC
)

// Sender and Membership re-export the core's out-of-scope collaborator
// interfaces, so an embedder implementing a custom transport need not
// import raft/core directly either.
type Sender = core.Sender
type Membership = core.Membership

// Option configures a Node at construction time.
type Option func(*conf.Config)

// WithID sets the node's stable identity. Without this option a random
// UUID-v4-shaped identifier is generated.
func WithID(id string) Option {
	return func(c *conf.Config) { c.ID = id }
}

// WithElectionBounds sets the [min, max] range the election timeout is
// drawn from.
func WithElectionBounds(min, max time.Duration) Option {
	return func(c *conf.Config) { c.ElectionMin, c.ElectionMax = min, max }
}

// WithHeartbeatBounds sets the [min, max] range the heartbeat cadence is
// drawn from.
func WithHeartbeatBounds(min, max time.Duration) Option {
	return func(c *conf.Config) { c.HeartbeatMin, c.HeartbeatMax = min, max }
}

// WithThreshold sets the proximity threshold reserved for future RTT/
// election-timeout warnings. Unused by the core state rules.
func WithThreshold(threshold float64) Option {
	return func(c *conf.Config) { c.Threshold = threshold }
}

// Node is a Raft node: a core.Machine wired to the Sender and Membership
// an embedder supplies, with an optional persistence hook. Every method
// simply delegates to the underlying Machine; Node adds no state of its
// own beyond the persistence wiring, in the same pass-through-facade shape
// the teacher's own top-level Raft type used over its core.
type Node struct {
	machine *core.Machine
	store   *persist.FileStore
}

// New constructs a Node in the FOLLOWER role, applying opts over the spec
// defaults (§3). sender and membership are required; see core.Sender and
// core.Membership.
func New(sender Sender, membership Membership, opts ...Option) (*Node, error) {
	cfg := conf.Default()
	cfg.ID = uuid.New().String()
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := core.New(cfg, sender, membership)
	if err != nil {
		return nil, err
	}
	return &Node{machine: m}, nil
}

// NewFromOptions constructs a Node from a dynamic map, for parity with
// the source's options style: the same recognized keys New's Option
// values set, including duration strings like "150 ms".
func NewFromOptions(options map[string]interface{}, sender Sender, membership Membership) (*Node, error) {
	cfg, err := config.FromMap(options)
	if err != nil {
		return nil, err
	}
	m, err := core.New(cfg, sender, membership)
	if err != nil {
		return nil, err
	}
	return &Node{machine: m}, nil
}

// WithPersistence attaches a file-backed snapshot of (term, voted-for) to
// an already-constructed Node: every term or vote change is saved to path.
// This is an ambient convenience, not a correctness requirement - the
// spec's non-goals exclude durable persistence across restarts, so the
// Node never reads the file back on its own.
func (n *Node) WithPersistence(path string) *Node {
	n.store = persist.NewFileStore(path)

	// Both listeners run synchronously while the Machine's own mutex is
	// still held by whatever call (Read, Promote, ...) triggered the
	// event - calling back into Term()/VotedFor() from here would
	// deadlock on that same mutex. Read the values straight off the
	// event payload instead.
	n.machine.Bus().OnTermChange(func(e events.TermChange) {
		// A term change always clears voted-for (I2).
		n.persist(e.New, nil)
	})
	n.machine.Bus().OnVote(func(e events.Vote) {
		if !e.Granted {
			return
		}
		name := e.Packet.Name
		n.persist(e.Packet.Term, &name)
	})
	return n
}

func (n *Node) persist(term uint64, votedFor *string) {
	if n.store == nil {
		return
	}
	// Best-effort: a failed snapshot write does not affect the running
	// Machine, which never reads this file back itself.
	_ = n.store.Save(term, votedFor)
}

// Bus exposes the node's lifecycle event dispatcher.
func (n *Node) Bus() *events.Bus { return n.machine.Bus() }

// Name returns the node's own identity.
func (n *Node) Name() string { return n.machine.Name() }

// Read ingests a packet received from a peer.
func (n *Node) Read(p *Packet) bool { return n.machine.Read(p) }

// Write hands a packet directly to the sender, bypassing ingress rules.
func (n *Node) Write(p *Packet) bool { return n.machine.Write(p) }

// Broadcast constructs and sends an envelope of kind carrying payload.
func (n *Node) Broadcast(kind Kind, payload interface{}) bool {
	return n.machine.Broadcast(kind, payload)
}

// Promote begins a new campaign.
func (n *Node) Promote() { n.machine.Promote() }

// Heartbeat arms or adjusts the watchdog timer.
func (n *Node) Heartbeat(duration ...time.Duration) { n.machine.Heartbeat(duration...) }

// Role reports the node's current role.
func (n *Node) Role() Role { return n.machine.Role() }

// Term reports the node's current term.
func (n *Node) Term() uint64 { return n.machine.Term() }

// Leader reports the believed leader's name, or nil if unknown.
func (n *Node) Leader() *string { return n.machine.Leader() }

// End stops the node.
func (n *Node) End() bool { return n.machine.End() }
