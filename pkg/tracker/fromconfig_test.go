package tracker

import (
	"testing"
	"time"

	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/reconcile"
)

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tracker.Airline = "afr"
	cfg.Tracker.Zone = "oceania"
	cfg.Tracker.UpdateIntervalSeconds = 5
	cfg.Tracker.HeadingPolicy = "track"
	cfg.Tracker.OrientationCount = 12

	tr, err := NewFromConfig(cfg, discard)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tr.Zone() != "oceania" {
		t.Errorf("Expected zone oceania, got %s", tr.Zone())
	}
	if tr.Airline() != "AFR" {
		t.Errorf("Expected airline AFR, got %s", tr.Airline())
	}
	if tr.interval != 5*time.Second || tr.fetchTimeout != 5*time.Second {
		t.Errorf("Expected 5s interval and timeout, got %v and %v", tr.interval, tr.fetchTimeout)
	}
	if tr.reconciler.Policy() != reconcile.PolicyTrack {
		t.Errorf("Expected track policy, got %s", tr.reconciler.Policy())
	}
	if tr.reconciler.Orientations().Count() != 12 {
		t.Errorf("Expected 12 orientations, got %d", tr.reconciler.Orientations().Count())
	}
}

func TestNewFromConfigInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tracker.HeadingPolicy = "magnetic"
	if _, err := NewFromConfig(cfg, discard); err == nil {
		t.Error("Expected error for unknown heading policy")
	}

	cfg = config.DefaultConfig()
	cfg.Tracker.OrientationCount = 7
	if _, err := NewFromConfig(cfg, discard); err == nil {
		t.Error("Expected error for orientation count that does not divide 360")
	}

	cfg = config.DefaultConfig()
	cfg.Tracker.OrientationCount = 0
	if _, err := NewFromConfig(cfg, discard); err == nil {
		t.Error("Expected error for zero orientation count, as Validate reports")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected Validate to reject zero orientation count")
	}
}

func TestFeedConfig(t *testing.T) {
	pc := config.DefaultConfig().Provider
	fc := FeedConfig(pc, discard)
	if fc.Retry.MaxRetries != 0 {
		t.Errorf("Expected single attempt by default, got %d retries", fc.Retry.MaxRetries)
	}
	if fc.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", fc.Timeout)
	}

	pc.MaxRetries = 2
	fc = FeedConfig(pc, discard)
	if fc.Retry.MaxRetries != 2 || fc.Retry.InitialDelay == 0 {
		t.Errorf("Expected default backoff with 2 retries, got %+v", fc.Retry)
	}
}
