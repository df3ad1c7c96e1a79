// Package wire encodes and decodes packet.Packet envelopes for transport.
//
// Encoding is gob, via the teacher's own generic utils/pd marshal helpers
// (originally written for raft log entries and hard state); Packet already
// satisfies pd.Message through its Reset method, so this package is a thin,
// typed façade rather than a reimplementation of pd's encoding.
package wire

import (
	"fmt"

	"github.com/thinkermao/raftcore/raft/core/packet"
	"github.com/thinkermao/raftcore/utils/pd"
)

// Marshal encodes p for transport.
func Marshal(p *packet.Packet) ([]byte, error) {
	data, err := pd.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes data previously produced by Marshal. An error here
// means malformed ingress: callers (transports) must drop the datagram
// rather than pass anything to core.Machine.Read, per the packet model's
// validity rule that non-structured ingress is silently dropped.
func Unmarshal(data []byte) (*packet.Packet, error) {
	var p packet.Packet
	if err := pd.Unmarshal(&p, data); err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	return &p, nil
}
