package app

import "time"

// Ticker is the part of time.Ticker the attempt clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates the periodic tick source for one attempt.
type TickerFunc func(d time.Duration) Ticker

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// NewSystemTicker wraps time.NewTicker.
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

// attemptTimer is the cancellable handle of the running clock.
type attemptTimer struct {
	stop chan struct{}
}

func (t *attemptTimer) cancel() {
	close(t.stop)
}
