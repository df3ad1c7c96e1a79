package core

import (
	"sync"
	"testing"
	"time"

	"github.com/thinkermao/raftcore/raft/core/conf"
	"github.com/thinkermao/raftcore/raft/core/packet"
)

// recordingSender captures every packet handed to Send without delivering
// it anywhere; tests inspect Sent() to assert what a Machine broadcast or
// wrote.
type recordingSender struct {
	mu   sync.Mutex
	sent []*packet.Packet
}

func (s *recordingSender) Send(p *packet.Packet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, p)
	return true
}

func (s *recordingSender) last() *packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fixedMembership reports a constant cluster size.
type fixedMembership int

func (f fixedMembership) Size() int { return int(f) }

func testConfig(t *testing.T, id string) conf.Config {
	t.Helper()
	cfg := conf.Default()
	cfg.ID = id
	// Fast, narrow bounds so timer-driven transitions in tests
	// don't need to wait out the spec defaults (150-300ms/50-70ms).
	cfg.ElectionMin, cfg.ElectionMax = 8*time.Millisecond, 12*time.Millisecond
	cfg.HeartbeatMin, cfg.HeartbeatMax = 2*time.Millisecond, 3*time.Millisecond
	return cfg
}

func newTestMachine(t *testing.T, id string, clusterSize int) (*Machine, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	m, err := New(testConfig(t, id), sender, fixedMembership(clusterSize))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.End() })
	return m, sender
}

// Scenario 1: startup defaults (§8).
func TestStartupDefaults(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)

	if m.Role() != Follower {
		t.Fatalf("role = %s, want Follower", m.Role())
	}
	if m.Term() != 0 {
		t.Fatalf("term = %d, want 0", m.Term())
	}
	if m.Leader() != nil {
		t.Fatalf("leader = %v, want nil", m.Leader())
	}
	if !m.timers.Active(watchdogTimer) {
		t.Fatal("watchdog timer not armed at startup")
	}
}

// Scenario 2: a single-node cluster reaches quorum on its own self-vote
// and becomes leader without any Voted reply ever arriving.
func TestElectionSingleNodeCluster(t *testing.T) {
	m, sender := newTestMachine(t, "n1", 1)

	m.Promote()

	if m.Role() != Leader {
		t.Fatalf("role = %s, want Leader", m.Role())
	}
	if m.Term() != 1 {
		t.Fatalf("term = %d, want 1", m.Term())
	}
	leader := m.Leader()
	if leader == nil || *leader != "n1" {
		t.Fatalf("leader = %v, want n1", leader)
	}
	if m.votedFor == nil || *m.votedFor != "n1" {
		t.Fatalf("votedFor = %v, want n1", m.votedFor)
	}
	if m.granted < 1 {
		t.Fatalf("granted = %d, want >= 1", m.granted)
	}
	// A single-node leader never needed to broadcast a vote solicitation.
	if sender.count() != 0 {
		t.Fatalf("sent %d packets, want 0 (no solicitation needed)", sender.count())
	}
}

// Scenario 3: a stale-term packet is dropped with no state change.
func TestStaleTermDropped(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)
	m.mu.Lock()
	m.term = 5
	m.mu.Unlock()

	accepted := m.Read(&packet.Packet{Term: 3, Name: "x", Type: packet.Vote})
	if accepted {
		t.Fatal("Read accepted a stale-term packet")
	}
	if m.Term() != 5 {
		t.Fatalf("term = %d, want unchanged 5", m.Term())
	}
	if m.Role() != Follower {
		t.Fatalf("role = %s, want unchanged Follower", m.Role())
	}
}

// Scenario 4: any higher-term packet demotes a LEADER to FOLLOWER and
// clears its vote record (I2).
func TestHigherTermDemotesLeader(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)
	m.mu.Lock()
	m.term = 5
	m.role = Leader
	name := "n1"
	m.votedFor = &name
	m.granted = 2
	m.mu.Unlock()

	m.Read(&packet.Packet{Term: 7, Name: "x", Type: packet.RPC})

	if m.Role() != Follower {
		t.Fatalf("role = %s, want Follower", m.Role())
	}
	if m.Term() != 7 {
		t.Fatalf("term = %d, want 7", m.Term())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votedFor != nil {
		t.Fatalf("votedFor = %v, want nil", m.votedFor)
	}
	if m.granted != 0 {
		t.Fatalf("granted = %d, want 0", m.granted)
	}
}

// Scenario 5: a second vote request in the same term is refused once the
// node has already voted for someone else (P7).
func TestVoteDuplicateRefused(t *testing.T) {
	m, sender := newTestMachine(t, "n1", 3)
	m.mu.Lock()
	m.term = 4
	m.mu.Unlock()

	if !m.Read(&packet.Packet{Term: 4, Name: "A", Type: packet.Vote}) {
		t.Fatal("Read rejected a same-term vote request")
	}
	first := sender.last()
	if first == nil || first.Type != packet.Voted || !first.Voted.Granted {
		t.Fatalf("first reply = %+v, want granted", first)
	}

	m.Read(&packet.Packet{Term: 4, Name: "B", Type: packet.Vote})
	second := sender.last()
	if second == nil || second.Type != packet.Voted || second.Voted.Granted {
		t.Fatalf("second reply = %+v, want refused", second)
	}
	if second.To != "B" {
		t.Fatalf("second reply To = %q, want B", second.To)
	}
}

// Scenario 6: an election timer that fires before quorum restarts the
// campaign at a fresh term with a fresh self-vote (split-vote recovery).
func TestSplitVoteReElection(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)
	m.Promote()
	if m.Term() != 1 || m.Role() != Candidate {
		t.Fatalf("after first promote: term=%d role=%s", m.Term(), m.Role())
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if m.Term() > 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if m.Term() <= 1 {
		t.Fatalf("term = %d, want > 1 after election timeout", m.Term())
	}
	if m.Role() != Candidate {
		t.Fatalf("role = %s, want Candidate", m.Role())
	}
	m.mu.Lock()
	votedFor, granted := m.votedFor, m.granted
	m.mu.Unlock()
	if votedFor == nil || *votedFor != "n1" {
		t.Fatalf("votedFor = %v, want n1", votedFor)
	}
	if granted != 1 {
		t.Fatalf("granted = %d, want 1", granted)
	}
}

// P6: a packet from a LEADER at the same term drives the recipient to
// FOLLOWER even if it was itself a CANDIDATE or LEADER.
func TestLeaderRecognitionDemotesCandidate(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)
	m.Promote()
	if m.Role() != Candidate {
		t.Fatalf("role = %s, want Candidate", m.Role())
	}

	m.Read(&packet.Packet{Term: 1, Name: "L", State: Leader, Type: packet.Heartbeat})

	if m.Role() != Follower {
		t.Fatalf("role = %s, want Follower", m.Role())
	}
	if m.Term() != 1 {
		t.Fatalf("term = %d, want unchanged 1", m.Term())
	}
}

// P3/P4: End() is terminal, idempotent, and leaves no timer armed.
func TestEndIsTerminal(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 3)

	if !m.End() {
		t.Fatal("first End() returned false")
	}
	if m.End() {
		t.Fatal("second End() returned true, want false")
	}
	if m.Role() != Stopped {
		t.Fatalf("role = %s, want Stopped", m.Role())
	}
	if m.Read(&packet.Packet{Term: 0, Name: "x", Type: packet.RPC}) {
		t.Fatal("Read on a stopped Machine returned true")
	}
	if m.Write(&packet.Packet{}) {
		t.Fatal("Write on a stopped Machine returned true")
	}
	if m.timers.Active(watchdogTimer) {
		t.Fatal("watchdog timer still armed after End")
	}
}

// I4: a role transition always leaves exactly the one watchdog timer this
// package ever schedules active, never zero and never a leftover second
// one from the role it just left.
func TestWatchdogArmedAcrossPromotion(t *testing.T) {
	m, _ := newTestMachine(t, "n1", 1)
	if !m.timers.Active(watchdogTimer) {
		t.Fatal("watchdog not armed before promotion")
	}

	m.Promote()

	if !m.timers.Active(watchdogTimer) {
		t.Fatal("watchdog not armed after promotion to leader")
	}
}
