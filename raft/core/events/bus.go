// Package events implements the node's lifecycle event dispatcher.
//
// The bus is a sealed set of typed, synchronous channels: one registration
// method and one payload type per event kind, rather than a dynamic
// string-keyed emitter. A node has a bus; it does not inherit one — callers
// attach listeners the way a transport attaches to a socket.
package events

import (
	"sync"

	"github.com/thinkermao/raftcore/raft/core/packet"
)

// TermChange is emitted when the node's term changes.
type TermChange struct {
	New, Old uint64
}

// StateChange is emitted when the node's role changes.
type StateChange struct {
	New, Old packet.Role
}

// LeaderChange is emitted when the node's believed leader changes.
// A nil pointer means "no leader known"; a pointer to "" means "election
// in flight, no leader yet".
type LeaderChange struct {
	New, Old *string
}

// Vote is emitted when the node casts a vote (granted or not) in response
// to a Vote packet it received.
type Vote struct {
	Packet  *packet.Packet
	Granted bool
}

// Data is emitted for every well-formed packet the node ingests, before
// any rule-specific processing. It is the demultiplex point surrounding
// code can use to observe raw traffic.
type Data struct {
	Packet *packet.Packet
}

// Bus dispatches node lifecycle events synchronously to registered
// listeners. All Emit* calls run listeners in registration order on the
// caller's goroutine; there is no internal buffering or goroutine hop.
type Bus struct {
	mu sync.Mutex

	onTerm            []func(TermChange)
	onState           []func(StateChange)
	onLeader          []func(LeaderChange)
	onHeartbeatTimeout []func()
	onVote            []func(Vote)
	onData            []func(Data)
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// OnTermChange registers a listener for term-change events.
func (b *Bus) OnTermChange(fn func(TermChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTerm = append(b.onTerm, fn)
}

// OnStateChange registers a listener for state-change events.
func (b *Bus) OnStateChange(fn func(StateChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onState = append(b.onState, fn)
}

// OnLeaderChange registers a listener for leader-change events.
func (b *Bus) OnLeaderChange(fn func(LeaderChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLeader = append(b.onLeader, fn)
}

// OnHeartbeatTimeout registers a listener for heartbeat-timeout events.
func (b *Bus) OnHeartbeatTimeout(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onHeartbeatTimeout = append(b.onHeartbeatTimeout, fn)
}

// OnVote registers a listener for vote-cast events.
func (b *Bus) OnVote(fn func(Vote)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onVote = append(b.onVote, fn)
}

// OnData registers a listener for raw-ingress events.
func (b *Bus) OnData(fn func(Data)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onData = append(b.onData, fn)
}

// EmitTermChange synchronously notifies term-change listeners.
func (b *Bus) EmitTermChange(e TermChange) {
	for _, fn := range b.snapshotTerm() {
		fn(e)
	}
}

// EmitStateChange synchronously notifies state-change listeners.
func (b *Bus) EmitStateChange(e StateChange) {
	for _, fn := range b.snapshotState() {
		fn(e)
	}
}

// EmitLeaderChange synchronously notifies leader-change listeners.
func (b *Bus) EmitLeaderChange(e LeaderChange) {
	for _, fn := range b.snapshotLeader() {
		fn(e)
	}
}

// EmitHeartbeatTimeout synchronously notifies heartbeat-timeout listeners.
func (b *Bus) EmitHeartbeatTimeout() {
	for _, fn := range b.snapshotHeartbeatTimeout() {
		fn()
	}
}

// EmitVote synchronously notifies vote listeners.
func (b *Bus) EmitVote(e Vote) {
	for _, fn := range b.snapshotVote() {
		fn(e)
	}
}

// EmitData synchronously notifies ingress listeners.
func (b *Bus) EmitData(e Data) {
	for _, fn := range b.snapshotData() {
		fn(e)
	}
}

// Clear removes every registered listener. Called by Machine.End.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTerm = nil
	b.onState = nil
	b.onLeader = nil
	b.onHeartbeatTimeout = nil
	b.onVote = nil
	b.onData = nil
}

// snapshot* copy the listener slice under lock so Emit* can run callbacks
// without holding the bus mutex (a listener may itself register a new
// listener, which would otherwise deadlock).

func (b *Bus) snapshotTerm() []func(TermChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(TermChange){}, b.onTerm...)
}

func (b *Bus) snapshotState() []func(StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(StateChange){}, b.onState...)
}

func (b *Bus) snapshotLeader() []func(LeaderChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(LeaderChange){}, b.onLeader...)
}

func (b *Bus) snapshotHeartbeatTimeout() []func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(){}, b.onHeartbeatTimeout...)
}

func (b *Bus) snapshotVote() []func(Vote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(Vote){}, b.onVote...)
}

func (b *Bus) snapshotData() []func(Data) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(Data){}, b.onData...)
}
