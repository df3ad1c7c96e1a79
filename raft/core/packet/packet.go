// Package packet defines the wire envelope exchanged between raft nodes.
//
// A Packet carries the sender's role and term plus a kind-specific payload.
// It is deliberately flat (one struct, many optional fields) rather than a
// tagged union, in the style of the message envelopes this package is
// modeled on: the kind-specific fields that do not apply to a given Type are
// simply left zero.
package packet

import (
	"encoding/gob"
	"fmt"
)

// Kind identifies the purpose of a Packet.
type Kind int

// Packet kinds.
const (
	// Heartbeat is a leader keep-alive sent to followers.
	Heartbeat Kind = iota
	// Vote is a candidate soliciting this node's vote.
	Vote
	// Voted is a reply to a Vote solicitation.
	Voted
	// RPC is reserved for future client-command dispatch.
	RPC
)

var kindString = []string{
	"heartbeat",
	"vote",
	"voted",
	"rpc",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindString) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindString[k]
}

// Role is the sender's role, carried on the wire. It lives in this leaf
// package (rather than in core, which would otherwise be the natural owner)
// so that Packet can reference it without an import cycle; package core
// re-exports it as core.Role.
type Role int

// Role values. Stopped is internal; the Raft paper does not define it, but a
// stopped node that still has in-flight packets in a transport queue needs a
// way to stamp them.
const (
	Follower Role = iota
	Candidate
	Leader
	Stopped
)

var roleString = []string{
	"follower",
	"candidate",
	"leader",
	"stopped",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleString) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleString[r]
}

// Packet is the envelope exchanged between nodes.
type Packet struct {
	// State is the sender's role at send time.
	State Role
	// Term is the sender's term at send time.
	Term uint64
	// Name is the sender's identity.
	Name string
	// Type is the message kind.
	Type Kind
	// To is the addressing hint for the out-of-scope transport: empty
	// means broadcast to every peer, non-empty names exactly one
	// recipient. The core never reads To for routing decisions itself —
	// Broadcast always leaves it empty, directed replies (a Voted packet)
	// set it to the sender's Name.
	To string

	// Vote carries the candidate's solicitation. Valid when Type == Vote.
	Vote VotePayload
	// Voted carries a vote reply. Valid when Type == Voted.
	Voted VotedPayload
	// Heartbeat carries the leader's heartbeat. Valid when Type == Heartbeat.
	Heartbeat HeartbeatPayload
	// RPCData is reserved, opaque client-command data. Valid when Type == RPC.
	RPCData []byte
}

// VotePayload is the kind-specific body of a Vote packet.
type VotePayload struct {
	// LastLogTerm and LastLogIndex are reserved hooks for a future
	// log-freshness check (Raft §5.4). They are accepted and carried
	// but never consulted by this core.
	LastLogTerm  uint64
	LastLogIndex uint64
}

// VotedPayload is the kind-specific body of a Voted packet.
type VotedPayload struct {
	Granted bool
}

// HeartbeatPayload is the kind-specific body of a Heartbeat packet.
type HeartbeatPayload struct {
	// DurationMillis is the watchdog duration the sender wants the
	// receiver to arm, in milliseconds. Zero means "let the receiver
	// generate its own".
	DurationMillis int64
}

// Reset zeroes the packet. Present so Packet satisfies the minimal
// "resettable message" shape (utils/pd.Message) that this module's wire
// package marshals through.
func (p *Packet) Reset() { *p = Packet{} }

func init() {
	gob.Register(Packet{})
}
