package engine

import "time"

// Ticker delivers the periodic tick. The production ticker wraps
// time.Ticker; tests inject a manual one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker with the given period.
type TickerFactory func(period time.Duration) Ticker

type wallTicker struct {
	t *time.Ticker
}

// NewWallTicker returns a Ticker backed by time.Ticker. A slow receiver
// loses ticks instead of receiving a burst.
func NewWallTicker(period time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(period)}
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }
