// Package inmem is a zero-network reference Transport: every registered
// node lives in the same process and exchanges packets through a shared
// Hub. It is grounded in the teacher's own NodeApplication/Transporter
// seam, generalized from a single wired-up application to an arbitrary
// number of named endpoints.
package inmem

import (
	"sync"

	"github.com/thinkermao/raftcore/raft/core/packet"
)

// Reader is the half of core.Machine a Hub needs to deliver inbound
// packets: core.Machine.Read itself satisfies this.
type Reader func(p *packet.Packet) bool

// Hub fans packets out between every Endpoint registered on it.
type Hub struct {
	mu    sync.RWMutex
	nodes map[string]Reader
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{nodes: make(map[string]Reader)}
}

// Register attaches a node's Read method under name and returns the
// core.Sender it should be constructed with.
func (h *Hub) Register(name string, read Reader) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[name] = read
	return &Endpoint{hub: h, name: name}
}

// Unregister detaches a node. Later Sends no longer reach it; deliveries an
// earlier Send already started on their own goroutines still run.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nodes, name)
}

func (h *Hub) snapshot() map[string]Reader {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Reader, len(h.nodes))
	for k, v := range h.nodes {
		out[k] = v
	}
	return out
}

// Endpoint is the core.Sender a single registered node holds.
type Endpoint struct {
	hub  *Hub
	name string
}

// Send implements core.Sender. A packet with To set is delivered to that
// one peer only; an empty To broadcasts to every other registered node.
// Delivery happens on its own goroutine per recipient: the sender may be
// holding its own Machine's mutex when Send is called, and a synchronous
// call into a peer's Read could re-enter back into the sender (a vote
// reply, say) before that mutex is released.
func (e *Endpoint) Send(p *packet.Packet) bool {
	nodes := e.hub.snapshot()

	if p.To != "" {
		read, ok := nodes[p.To]
		if !ok {
			return false
		}
		cp := *p
		go read(&cp)
		return true
	}

	delivered := false
	for name, read := range nodes {
		if name == e.name {
			continue
		}
		cp := *p
		go read(&cp)
		delivered = true
	}
	return delivered
}
