package config

import (
	"testing"
	"time"
)

func TestFromMapAppliesDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{"id": "n1"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.ID != "n1" {
		t.Fatalf("ID = %q, want n1", cfg.ID)
	}
	if cfg.ElectionMin != 150*time.Millisecond {
		t.Fatalf("ElectionMin = %s, want the spec default", cfg.ElectionMin)
	}
}

func TestFromMapGeneratesIDWhenAbsent(t *testing.T) {
	cfg, err := FromMap(nil)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.ID == "" {
		t.Fatal("ID left empty with neither id nor name supplied")
	}
}

func TestFromMapAcceptsNameAlias(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{"name": "n2"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.ID != "n2" {
		t.Fatalf("ID = %q, want n2", cfg.ID)
	}
}

func TestFromMapParsesSpacedDurationString(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{
		"id":            "n1",
		"election min":  "150 ms",
		"election max":  "300 ms",
		"heartbeat min": "50 ms",
		"heartbeat max": "70 ms",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.ElectionMin != 150*time.Millisecond {
		t.Fatalf("ElectionMin = %s, want 150ms", cfg.ElectionMin)
	}
}

func TestFromMapParsesPlainIntegerMillisString(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{"id": "n1", "election min": "150"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.ElectionMin != 150*time.Millisecond {
		t.Fatalf("ElectionMin = %s, want 150ms", cfg.ElectionMin)
	}
}

func TestFromMapAcceptsNumericDuration(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{"id": "n1", "heartbeat min": 25})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.HeartbeatMin != 25*time.Millisecond {
		t.Fatalf("HeartbeatMin = %s, want 25ms", cfg.HeartbeatMin)
	}
}

func TestFromMapRejectsNonPositiveDuration(t *testing.T) {
	if _, err := FromMap(map[string]interface{}{"id": "n1", "election min": -5}); err == nil {
		t.Fatal("FromMap accepted a negative duration")
	}
}

func TestFromMapRejectsInvalidThreshold(t *testing.T) {
	if _, err := FromMap(map[string]interface{}{"id": "n1", "threshold": 2.0}); err == nil {
		t.Fatal("FromMap accepted a threshold outside [0,1]")
	}
}

func TestFromMapRejectsHeartbeatNotBelowElection(t *testing.T) {
	_, err := FromMap(map[string]interface{}{
		"id":            "n1",
		"election min":  "10ms",
		"heartbeat min": "5ms",
		"heartbeat max": "10ms",
	})
	if err == nil {
		t.Fatal("FromMap accepted heartbeat max >= election min")
	}
}
