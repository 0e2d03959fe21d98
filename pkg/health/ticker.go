package health

import "time"

// Ticker is the clock that paces refresh cycles. Tests drive it by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }

// NewRealTicker wraps time.Ticker. Like time.Ticker it drops ticks while the
// receiver is busy, so an overrunning cycle is followed by at most one
// immediate catch-up cycle.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}
