package core

import "github.com/thinkermao/raftcore/raft/core/packet"

// Role is the node's current position in the Raft state machine. It is a
// re-export of packet.Role so a Packet's sender-role field and a Machine's
// own role share one type without an import cycle between core and packet.
type Role = packet.Role

// Role values.
const (
	Follower  = packet.Follower
	Candidate = packet.Candidate
	Leader    = packet.Leader
	// Stopped is internal; the Raft paper does not define it. STOPPED is
	// terminal: no further transitions happen once a Machine reaches it.
	Stopped = packet.Stopped
)
