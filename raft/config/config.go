// Package config decodes a node's construction options from a generic
// map[string]interface{}, the shape a YAML/JSON/env loader upstream would
// hand back, without this module taking a parsing dependency of its own.
// It mirrors the teacher's Config.Verify validate-on-construct idiom.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thinkermao/raftcore/raft/core/conf"
)

// Recognized keys, matching §6 of the construction-options contract.
const (
	KeyID           = "id"
	KeyName         = "name"
	KeyElectionMin  = "election min"
	KeyElectionMax  = "election max"
	KeyHeartbeatMin = "heartbeat min"
	KeyHeartbeatMax = "heartbeat max"
	KeyThreshold    = "threshold"
)

// FromMap decodes options into a conf.Config, applying every spec default
// for a key that is absent, generating a UUID-v4-shaped ID when neither
// "id" nor "name" is given, and validating the result exactly as a
// functional-option construction would.
func FromMap(options map[string]interface{}) (conf.Config, error) {
	cfg := conf.Default()

	if id, ok := firstString(options, KeyID, KeyName); ok {
		cfg.ID = id
	} else {
		cfg.ID = uuid.New().String()
	}

	var err error
	if cfg.ElectionMin, err = durationOr(options, KeyElectionMin, cfg.ElectionMin); err != nil {
		return conf.Config{}, err
	}
	if cfg.ElectionMax, err = durationOr(options, KeyElectionMax, cfg.ElectionMax); err != nil {
		return conf.Config{}, err
	}
	if cfg.HeartbeatMin, err = durationOr(options, KeyHeartbeatMin, cfg.HeartbeatMin); err != nil {
		return conf.Config{}, err
	}
	if cfg.HeartbeatMax, err = durationOr(options, KeyHeartbeatMax, cfg.HeartbeatMax); err != nil {
		return conf.Config{}, err
	}

	if v, ok := options[KeyThreshold]; ok {
		f, err := toFloat(v)
		if err != nil {
			return conf.Config{}, fmt.Errorf("config: threshold: %w", err)
		}
		cfg.Threshold = f
	}

	if err := cfg.Verify(); err != nil {
		return conf.Config{}, err
	}
	return cfg, nil
}

func firstString(options map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := options[k]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		return s, true
	}
	return "", false
}

func durationOr(options map[string]interface{}, key string, def time.Duration) (time.Duration, error) {
	v, ok := options[key]
	if !ok {
		return def, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// parseDuration accepts a numeric value (interpreted as milliseconds) or
// a duration string - either Go's native form ("150ms") or the source's
// "150 ms" (a number, a space, a unit), which time.ParseDuration rejects
// outright. Negative and non-finite values are rejected.
func parseDuration(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return validateDuration(t)
	case int:
		return validateDuration(time.Duration(t) * time.Millisecond)
	case int64:
		return validateDuration(time.Duration(t) * time.Millisecond)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("duration %v is not finite", t)
		}
		return validateDuration(time.Duration(t * float64(time.Millisecond)))
	case string:
		collapsed := strings.Join(strings.Fields(t), "")
		if d, err := time.ParseDuration(collapsed); err == nil {
			return validateDuration(d)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", t)
		}
		return validateDuration(time.Duration(n) * time.Millisecond)
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}

func validateDuration(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("%v is not finite", t)
		}
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
