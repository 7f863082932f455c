// Package backoff provides exponential delay policies for polling and retry.
package backoff

import (
	"math"
	"time"
)

// Policy describes an exponential delay schedule. Zero values use defaults.
type Policy struct {
	Initial time.Duration // first delay (default: 100ms)
	Max     time.Duration // ceiling (default: 5s)
	Factor  float64       // growth per attempt (default: 2)
}

// Default is the standard retry schedule: 100ms doubling up to 5s.
var Default = Policy{}

// Next returns the delay before the given attempt. Attempt 1 returns
// Initial, attempt 2 returns Initial*Factor, and so on, capped at Max.
func (p Policy) Next(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	ceiling := p.Max
	if ceiling <= 0 {
		ceiling = 5 * time.Second
	}
	factor := p.Factor
	if factor <= 1 {
		factor = 2
	}

	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(factor, float64(attempt-1))
	if d > float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}
