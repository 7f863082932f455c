package backoff

import (
	"testing"
	"time"
)

func TestNextDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{10, 5 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := Default.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNextCustomPolicy(t *testing.T) {
	t.Parallel()

	p := Policy{Initial: time.Second, Max: 30 * time.Second, Factor: 3}
	if got := p.Next(1); got != time.Second {
		t.Errorf("Next(1) = %v, want 1s", got)
	}
	if got := p.Next(2); got != 3*time.Second {
		t.Errorf("Next(2) = %v, want 3s", got)
	}
	if got := p.Next(20); got != 30*time.Second {
		t.Errorf("Next(20) = %v, want cap 30s", got)
	}
}
