// Package membership provides a reference implementation of the core's
// Membership seam: it reports the current size of the voting peer set.
// The core reads size only - it never asks membership who the peers are,
// since membership-change semantics (Raft joint consensus) are explicitly
// out of scope for this module.
package membership

import "sync"

// Static reports a fixed (but updatable) set of peer names. It satisfies
// core.Membership.
type Static struct {
	mu    sync.RWMutex
	peers map[string]struct{}
}

// NewStatic builds a Static membership over the given peer names. The
// local node's own name should be included: Size() counts every voting
// member, self included, matching the quorum formula's N.
func NewStatic(peers ...string) *Static {
	s := &Static{peers: make(map[string]struct{}, len(peers))}
	for _, p := range peers {
		s.peers[p] = struct{}{}
	}
	return s
}

// Size reports the number of voting peers currently known.
func (s *Static) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Add registers a peer. Provided for tests exercising cluster growth
// without implementing full Raft membership-change semantics.
func (s *Static) Add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[name] = struct{}{}
}

// Remove drops a peer. See Add.
func (s *Static) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, name)
}

// Peers returns a snapshot of the current peer names.
func (s *Static) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}
