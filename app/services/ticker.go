package services

import "time"

// DefaultInterval is the time between reconciliation ticks
const DefaultInterval = 60 * time.Second

// Ticker drives the steady-state loop
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker wraps time.Ticker. Ticks that arrive while the loop is busy
// are dropped rather than queued, so slow ticks never overlap.
func NewTimeTicker(interval time.Duration) Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return timeTicker{t: time.NewTicker(interval)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }

func (t timeTicker) Stop() { t.t.Stop() }
