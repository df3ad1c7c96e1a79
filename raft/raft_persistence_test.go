package raft_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/thinkermao/raftcore/raft"
)

type noopSender struct{}

func (noopSender) Send(p *raft.Packet) bool { return true }

type fixedSize int

func (f fixedSize) Size() int { return int(f) }

// TestWithPersistenceDoesNotDeadlockOnTermChangeOrVote drives a live Node
// through both events WithPersistence listens on (a term change, a granted
// vote) and requires each to return promptly. Both listeners fire
// synchronously while the Machine's own mutex is held by the call that
// triggered them (Read); a listener that called back into the Machine's
// self-locking Term()/VotedFor() accessors from inside that emit would
// deadlock right here.
func TestWithPersistenceDoesNotDeadlockOnTermChangeOrVote(t *testing.T) {
	node, err := raft.New(noopSender{}, fixedSize(3), raft.WithID("n1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer node.End()

	store := filepath.Join(t.TempDir(), "state")
	node.WithPersistence(store)

	done := make(chan bool, 1)
	go func() {
		// A higher term in an inbound vote request both bumps this
		// node's term (term-change event) and, since it has not yet
		// voted this term, grants the vote (vote event) - exercising
		// both listeners WithPersistence registers in one call.
		done <- node.Read(&raft.Packet{Term: 1, Name: "candidate-x", Type: raft.Vote})
	}()

	select {
	case accepted := <-done:
		if !accepted {
			t.Fatal("Read reported the vote request was not accepted")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read deadlocked: a persistence listener called back into the Machine's own lock")
	}

	if node.Term() != 1 {
		t.Fatalf("Term() = %d, want 1", node.Term())
	}
}
