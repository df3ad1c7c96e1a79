package core

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkermao/raftcore/raft/core/events"
	"github.com/thinkermao/raftcore/raft/core/packet"
	"github.com/thinkermao/raftcore/raft/core/quorum"
	"github.com/thinkermao/raftcore/raft/core/timeout"
	"github.com/thinkermao/raftcore/utils"
)

// wireDerivedReactions registers the two derived reactions §4.5 specifies:
// a term change clears the current vote record (I2), a role change clears
// every timer and reschedules the watchdog for the new role. Both closures
// run on whatever goroutine called change - always already holding m.mu -
// so they touch m's fields directly and call the *Locked helpers, never the
// public, re-locking methods.
func (m *Machine) wireDerivedReactions() {
	m.bus.OnTermChange(func(events.TermChange) {
		m.votedFor = nil
		m.granted = 0
	})
	m.bus.OnStateChange(func(e events.StateChange) {
		if e.New == packet.Stopped {
			return
		}
		m.timers.Clear()
		m.heartbeatLocked(nil)
	})
}

// change applies a partial update over (term, leader, state). Each
// argument is optional; a field whose new value differs from the current
// one is written and synchronously emits its change event, in the order
// term, leader, state, before change returns. Derived reactions (wired by
// wireDerivedReactions) run inline as part of that emission.
func (m *Machine) change(term *uint64, leader **string, role *packet.Role) {
	if term != nil && *term != m.term {
		utils.Assert(*term > m.term, "core: term must not decrease (%d -> %d)", m.term, *term)
		old := m.term
		m.term = *term
		m.bus.EmitTermChange(events.TermChange{New: *term, Old: old})
	}
	if leader != nil && !leaderEqual(*leader, m.leader) {
		old := m.leader
		m.leader = *leader
		m.bus.EmitLeaderChange(events.LeaderChange{New: *leader, Old: old})
	}
	if role != nil && *role != m.role {
		old := m.role
		m.role = *role
		log.WithFields(log.Fields{"name": m.name, "term": m.term}).
			Infof("core: role %s -> %s", old, *role)
		m.bus.EmitStateChange(events.StateChange{New: *role, Old: old})
	}
}

func leaderEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// readLocked applies Rule A (term reconciliation), Rule B (leader
// recognition), and Rule C (kind dispatch), in that order, to an inbound
// packet already known to be well-formed (wire.Unmarshal having dropped
// anything that was not). It reports whether the packet was admitted.
func (m *Machine) readLocked(p *packet.Packet) bool {
	m.bus.EmitData(events.Data{Packet: p})

	// Rule A: term reconciliation (Raft §5.1).
	if p.Term > m.term {
		term := p.Term
		role := packet.Follower
		m.change(&term, nil, &role)
	} else if p.Term < m.term {
		log.WithFields(log.Fields{"name": m.name, "term": m.term}).
			Debugf("core: dropping stale packet from %s at term %d", p.Name, p.Term)
		return false
	}

	// Rule B: leader recognition (Raft §5.2).
	if p.State == packet.Leader && m.role != packet.Follower {
		role := packet.Follower
		m.change(nil, nil, &role)
	}

	// Rule C: kind dispatch.
	switch p.Type {
	case packet.Heartbeat:
		m.handleHeartbeatLocked(p)
	case packet.Vote:
		m.handleVoteLocked(p)
	case packet.Voted:
		m.handleVotedLocked(p)
	case packet.RPC:
		// Reserved for future client-command dispatch; currently a no-op.
	}
	return true
}

func (m *Machine) handleHeartbeatLocked(p *packet.Packet) {
	if p.State != packet.Leader {
		return
	}
	if p.Heartbeat.DurationMillis > 0 {
		d := time.Duration(p.Heartbeat.DurationMillis) * time.Millisecond
		m.heartbeatLocked(&d)
		return
	}
	m.heartbeatLocked(nil)
}

// handleVoteLocked implements the vote-solicitation rule. LastLogTerm and
// LastLogIndex on p.Vote are accepted but never consulted: the log-
// freshness check (Raft §5.4) is a reserved hook, not implemented here,
// since log replication is out of scope for this core.
func (m *Machine) handleVoteLocked(p *packet.Packet) {
	if p.Term < m.term {
		m.castVoteLocked(p, false)
		return
	}
	if p.Term > m.term {
		term := p.Term
		role := packet.Follower
		m.change(&term, nil, &role)
	}
	if m.votedFor != nil && *m.votedFor != p.Name {
		m.castVoteLocked(p, false)
		return
	}
	name := p.Name
	m.votedFor = &name
	m.castVoteLocked(p, true)
}

func (m *Machine) castVoteLocked(p *packet.Packet, granted bool) {
	m.bus.EmitVote(events.Vote{Packet: p, Granted: granted})
	reply := m.buildPacketLocked(packet.Voted, packet.VotedPayload{Granted: granted})
	reply.To = p.Name
	m.sender.Send(reply)
}

// handleVotedLocked implements the vote-tally rule for a node currently
// campaigning. Votes from any other role, or for a stale term, are ignored.
func (m *Machine) handleVotedLocked(p *packet.Packet) {
	if m.role != packet.Candidate {
		return
	}
	if p.Voted.Granted && p.Term == m.term {
		m.granted++
	}
	if p.Term > m.term {
		term := p.Term
		role := packet.Follower
		m.change(&term, nil, &role)
		return
	}
	m.maybeBecomeLeaderLocked()
}

// maybeBecomeLeaderLocked transitions a CANDIDATE with enough granted
// votes to LEADER (Rule D). It is called both after tallying a Voted
// reply and right after self-voting in promoteLocked, since a one-node
// cluster reaches quorum on the self-vote alone, with no Voted reply ever
// arriving.
func (m *Machine) maybeBecomeLeaderLocked() {
	if m.role != packet.Candidate || m.granted < quorum.Of(m.membership.Size()) {
		return
	}
	name := m.name
	leaderPtr := &name
	role := packet.Leader
	m.change(nil, &leaderPtr, &role)
	log.WithFields(log.Fields{"name": m.name, "term": m.term}).Info("core: elected leader")
}

// broadcastLocked builds an envelope of kind carrying payload and hands it
// to Sender exactly once, with To left empty: the core does not enumerate
// peers, the transport attached to Sender does.
func (m *Machine) broadcastLocked(kind packet.Kind, payload interface{}) bool {
	p := m.buildPacketLocked(kind, payload)
	return m.sender.Send(p)
}

func (m *Machine) buildPacketLocked(kind packet.Kind, payload interface{}) *packet.Packet {
	p := &packet.Packet{
		State: m.role,
		Term:  m.term,
		Name:  m.name,
		Type:  kind,
	}
	switch v := payload.(type) {
	case packet.VotePayload:
		p.Vote = v
	case packet.VotedPayload:
		p.Voted = v
	case packet.HeartbeatPayload:
		p.Heartbeat = v
	case []byte:
		p.RPCData = v
	case nil:
	}
	return p
}

// promoteLocked begins a new campaign: bump the term, become CANDIDATE,
// self-vote, and broadcast a solicitation. A first promotion (FOLLOWER ->
// CANDIDATE) gets its watchdog re-armed by the state-change reaction; a
// repeat promotion after a split vote does not change role (it was already
// CANDIDATE), so no state-change event fires and the watchdog - already
// spent, having just fired to get here - would otherwise stay unarmed.
// promoteLocked re-arms it explicitly in that case.
func (m *Machine) promoteLocked() {
	term := m.term + 1
	role := packet.Candidate
	inFlight := ""
	leaderPtr := &inFlight
	m.change(&term, &leaderPtr, &role)

	name := m.name
	m.votedFor = &name
	m.granted = 1

	log.WithFields(log.Fields{"name": m.name, "term": m.term}).Info("core: promoting to candidate")
	m.maybeBecomeLeaderLocked()
	if m.role == packet.Candidate {
		m.heartbeatLocked(nil)
		m.broadcastLocked(packet.Vote, packet.VotePayload{})
	}
}

// heartbeatLocked arms or adjusts the single watchdog timer this package
// ever schedules. With d == nil it draws a fresh duration from the class
// appropriate to the current role (Heartbeat for a LEADER, Election
// otherwise); with d set it uses that duration instead, as when a
// follower's inbound heartbeat carries the leader's own cadence.
func (m *Machine) heartbeatLocked(d *time.Duration) {
	var duration time.Duration
	if d != nil {
		duration = *d
	} else {
		class := timeout.Heartbeat
		if m.role != packet.Leader {
			class = timeout.Election
		}
		duration = m.timeouts.Of(class)
	}

	if m.timers.Active(watchdogTimer) {
		m.timers.Adjust(watchdogTimer, duration)
		return
	}
	if err := m.timers.Set(watchdogTimer, duration, m.onWatchdogFired); err != nil {
		log.WithField("name", m.name).Warnf("core: failed to arm watchdog: %v", err)
	}
}

// onWatchdogFired runs on the timer registry's own goroutine: it acquires
// m.mu itself, matching the serialization guarantee that timer callbacks
// and inbound-packet handling never interleave within a node.
func (m *Machine) onWatchdogFired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.role == packet.Leader {
		m.broadcastLocked(packet.Heartbeat, packet.HeartbeatPayload{})
		m.heartbeatLocked(nil)
		return
	}
	m.bus.EmitHeartbeatTimeout()
	m.promoteLocked()
}
