package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a Ticker whose ticks are delivered by the test.
//
// The receiver must call C() once per wait, as a select loop does. Tick
// returns only after the receiver has taken the tick AND come back for the
// next one (or Stop was called), so when Tick returns the tick has been
// fully processed.
//
// Thread-safety: Tick and Stop may be called from different goroutines.
type ManualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once

	mu     sync.Mutex
	sent   int
	calls  int
	called chan struct{} // closed and replaced on every C call
	at     time.Time
}

// NewManualTicker creates a ticker whose tick times start at epoch.
func NewManualTicker(epoch time.Time) *ManualTicker {
	return &ManualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
		called:  make(chan struct{}),
		at:      epoch,
	}
}

// C implements engine.Ticker.
func (m *ManualTicker) C() <-chan time.Time {
	m.mu.Lock()
	m.calls++
	close(m.called)
	m.called = make(chan struct{})
	m.mu.Unlock()
	return m.ch
}

// Stop implements engine.Ticker. Pending and future Tick calls return.
func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

// Stopped returns a channel closed once Stop is called.
func (m *ManualTicker) Stopped() <-chan struct{} {
	return m.stopped
}

// Sent returns how many ticks were taken by the receiver.
func (m *ManualTicker) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Tick delivers one tick. Returns false if the ticker was stopped before the
// tick was taken.
func (m *ManualTicker) Tick() bool {
	m.mu.Lock()
	at := m.at.Add(time.Duration(m.sent+1) * time.Millisecond)
	m.mu.Unlock()

	select {
	case <-m.stopped:
		return false
	default:
	}
	select {
	case m.ch <- at:
	case <-m.stopped:
		return false
	}

	// The n-th tick is taken during the n-th C call; the receiver is done
	// with it once it makes call n+1.
	m.mu.Lock()
	m.sent++
	target := m.sent + 1
	m.mu.Unlock()

	for {
		m.mu.Lock()
		calls, called := m.calls, m.called
		m.mu.Unlock()
		if calls >= target {
			return true
		}
		select {
		case <-called:
		case <-m.stopped:
			return true
		}
	}
}

// TickN delivers up to n ticks and returns how many were taken.
func (m *ManualTicker) TickN(n int) int {
	for i := 0; i < n; i++ {
		if !m.Tick() {
			return i
		}
	}
	return n
}
