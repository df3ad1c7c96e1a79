// Package conf holds the configuration a core.Machine is built from.
package conf

import (
	"fmt"
	"time"

	"github.com/thinkermao/raftcore/raft/core/timeout"
)

// Default election and heartbeat bounds, per Raft §5.2 guidance that the
// heartbeat interval be well under the election timeout.
const (
	DefaultElectionMin  = 150 * time.Millisecond
	DefaultElectionMax  = 300 * time.Millisecond
	DefaultHeartbeatMin = 50 * time.Millisecond
	DefaultHeartbeatMax = 70 * time.Millisecond
	DefaultThreshold    = 0.8
)

// Config collects the construction options of a core.Machine.
type Config struct {
	// ID is the node's stable identity. Required.
	ID string

	ElectionMin, ElectionMax   time.Duration
	HeartbeatMin, HeartbeatMax time.Duration

	// Threshold is a proximity scalar in [0,1], reserved for future
	// RTT/election-timeout proximity warnings. Unused by the core state
	// rules.
	Threshold float64
}

// Default returns a Config with every field at its spec default except ID,
// which the caller must still set.
func Default() Config {
	return Config{
		ElectionMin:  DefaultElectionMin,
		ElectionMax:  DefaultElectionMax,
		HeartbeatMin: DefaultHeartbeatMin,
		HeartbeatMax: DefaultHeartbeatMax,
		Threshold:    DefaultThreshold,
	}
}

// Verify checks that c is well formed, returning a descriptive error rather
// than panicking: invalid construction options are a caller mistake, not a
// core bug.
func (c *Config) Verify() error {
	if c.ID == "" {
		return fmt.Errorf("conf: id cannot be empty")
	}
	if err := (timeout.Bounds{Min: c.ElectionMin, Max: c.ElectionMax}).Validate(); err != nil {
		return fmt.Errorf("conf: election %w", err)
	}
	if err := (timeout.Bounds{Min: c.HeartbeatMin, Max: c.HeartbeatMax}).Validate(); err != nil {
		return fmt.Errorf("conf: heartbeat %w", err)
	}
	if c.HeartbeatMax >= c.ElectionMin {
		return fmt.Errorf("conf: heartbeat max %s must be less than election min %s",
			c.HeartbeatMax, c.ElectionMin)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("conf: threshold %v out of range [0,1]", c.Threshold)
	}
	return nil
}

// Generator builds a timeout.Generator from the bounds in c.
func (c *Config) Generator() *timeout.Generator {
	return timeout.NewGenerator(map[timeout.Class]timeout.Bounds{
		timeout.Election:  {Min: c.ElectionMin, Max: c.ElectionMax},
		timeout.Heartbeat: {Min: c.HeartbeatMin, Max: c.HeartbeatMax},
	})
}
