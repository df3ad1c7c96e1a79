// Package tcp is a reference Transport that frames packets as a
// length-prefixed gob stream over net.Conn, dialing a fresh connection per
// send - the simplest style found across the wider pack's own raft
// transports. It encodes with this module's wire package (gob, grounded in
// the teacher's utils/pd helpers).
package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkermao/raftcore/raft/core/packet"
	"github.com/thinkermao/raftcore/raft/wire"
)

const maxPacketSize = 4 << 20 // 4 MiB: guards against a corrupt length prefix

// Reader is the half of core.Machine a Transport needs to deliver inbound
// packets: core.Machine.Read itself satisfies this.
type Reader func(p *packet.Packet) bool

// Transport listens for inbound connections on one address and dials
// outbound connections to known peer addresses on demand.
type Transport struct {
	mu          sync.RWMutex
	peers       map[string]string
	listener    net.Listener
	read        Reader
	dialTimeout time.Duration
}

// Listen starts a Transport accepting connections on addr. read is called
// once per inbound packet, on its own goroutine per connection.
func Listen(addr string, read Reader) (*Transport, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", addr, err)
	}
	t := &Transport{
		peers:       make(map[string]string),
		listener:    l,
		read:        read,
		dialTimeout: 2 * time.Second,
	}
	go t.acceptLoop()
	return t, nil
}

// Addr reports the address the Transport is listening on.
func (t *Transport) Addr() net.Addr {
	return t.listener.Addr()
}

// AddPeer registers the dial address for a peer name. To() targets for
// Broadcast/Write resolve through this table.
func (t *Transport) AddPeer(name, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[name] = addr
}

// RemovePeer drops a peer's dial address.
func (t *Transport) RemovePeer(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, name)
}

// Close stops accepting new connections.
func (t *Transport) Close() error {
	return t.listener.Close()
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		go t.serve(conn)
	}
}

func (t *Transport) serve(conn net.Conn) {
	defer conn.Close()
	for {
		p, err := readPacket(conn)
		if err != nil {
			if err != io.EOF {
				log.Debugf("tcp: read from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		t.read(p)
	}
}

// Send implements core.Sender. A packet with To set is dialed to that
// peer's address only; an empty To broadcasts to every known peer.
func (t *Transport) Send(p *packet.Packet) bool {
	t.mu.RLock()
	peers := make(map[string]string, len(t.peers))
	for k, v := range t.peers {
		peers[k] = v
	}
	t.mu.RUnlock()

	if p.To != "" {
		addr, ok := peers[p.To]
		if !ok {
			return false
		}
		return t.sendTo(addr, p)
	}

	sent := false
	for _, addr := range peers {
		if t.sendTo(addr, p) {
			sent = true
		}
	}
	return sent
}

func (t *Transport) sendTo(addr string, p *packet.Packet) bool {
	conn, err := net.DialTimeout("tcp", addr, t.dialTimeout)
	if err != nil {
		log.Warnf("tcp: dial %s: %v", addr, err)
		return false
	}
	defer conn.Close()
	if err := writePacket(conn, p); err != nil {
		log.Warnf("tcp: write %s: %v", addr, err)
		return false
	}
	return true
}

func writePacket(conn net.Conn, p *packet.Packet) error {
	data, err := wire.Marshal(p)
	if err != nil {
		return err
	}
	if err := binary.Write(conn, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

func readPacket(conn net.Conn) (*packet.Packet, error) {
	for {
		var length uint32
		if err := binary.Read(conn, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		if length > maxPacketSize {
			return nil, fmt.Errorf("tcp: packet of %d bytes exceeds limit", length)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return nil, err
		}
		p, err := wire.Unmarshal(buf)
		if err != nil {
			// Malformed ingress: the packet model's validity rule is to
			// drop it silently and keep reading the stream.
			log.Debugf("tcp: dropping malformed packet: %v", err)
			continue
		}
		return p, nil
	}
}
