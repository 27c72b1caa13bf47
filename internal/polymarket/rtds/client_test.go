package rtds

import (
	"testing"
	"time"
)

func TestStale(t *testing.T) {
	now := time.Unix(1756600000, 0)
	timeout := 300 * time.Second

	tests := []struct {
		name        string
		lastData    time.Time
		expected    bool
		description string
	}{
		{
			name:        "fresh data",
			lastData:    now.Add(-10 * time.Second),
			expected:    false,
			description: "10s old is well within a 300s timeout",
		},
		{
			name:        "exactly at timeout",
			lastData:    now.Add(-300 * time.Second),
			expected:    false,
			description: "Boundary is not yet stale, only past it",
		},
		{
			name:        "just past timeout",
			lastData:    now.Add(-300*time.Second - time.Nanosecond),
			expected:    true,
			description: "Anything past the timeout is stale",
		},
		{
			name:        "long silence",
			lastData:    now.Add(-time.Hour),
			expected:    true,
			description: "An hour of silence must trip the watchdog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stale(tt.lastData, now, timeout); got != tt.expected {
				t.Errorf("stale = %v, want %v (%s)", got, tt.expected, tt.description)
			}
		})
	}
}

// The watchdog polls every watchdogPoll, so a silent connection is force
// closed at most dataTimeout + watchdogPoll after the last message.
func TestStaleDetectionBound(t *testing.T) {
	dataTimeout := 300 * time.Second
	watchdogPoll := 60 * time.Second

	lastData := time.Unix(1756600000, 0)

	// Walk the poll ticks after the last message; the first stale tick
	// must come no later than dataTimeout + watchdogPoll.
	detected := time.Duration(0)
	for elapsed := watchdogPoll; elapsed <= dataTimeout+2*watchdogPoll; elapsed += watchdogPoll {
		if stale(lastData, lastData.Add(elapsed), dataTimeout) {
			detected = elapsed
			break
		}
	}

	if detected == 0 {
		t.Fatal("watchdog never detected the stale connection")
	}
	if detected > dataTimeout+watchdogPoll {
		t.Errorf("detected after %v, want at most %v", detected, dataTimeout+watchdogPoll)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name        string
		current     time.Duration
		expected    time.Duration
		description string
	}{
		{
			name:        "doubles from initial",
			current:     1 * time.Second,
			expected:    2 * time.Second,
			description: "1s -> 2s",
		},
		{
			name:        "doubles mid-range",
			current:     8 * time.Second,
			expected:    16 * time.Second,
			description: "8s -> 16s",
		},
		{
			name:        "caps at max",
			current:     40 * time.Second,
			expected:    60 * time.Second,
			description: "80s would exceed the 60s cap",
		},
		{
			name:        "stays at max",
			current:     60 * time.Second,
			expected:    60 * time.Second,
			description: "Cap is sticky",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.current); got != tt.expected {
				t.Errorf("nextBackoff(%v) = %v, want %v (%s)", tt.current, got, tt.expected, tt.description)
			}
		})
	}
}

func TestBackoffProgressionReachesCap(t *testing.T) {
	backoff := initialBackoff
	steps := 0
	for backoff < maxBackoff {
		backoff = nextBackoff(backoff)
		steps++
		if steps > 20 {
			t.Fatal("backoff never reached the cap")
		}
	}

	// 1 -> 2 -> 4 -> 8 -> 16 -> 32 -> 60
	if steps != 6 {
		t.Errorf("reached cap in %d steps, want 6", steps)
	}
}
