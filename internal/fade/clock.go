package fade

import (
	"sync"
	"time"
)

// Ticker is a repeating scheduled callback.
type Ticker interface {
	// Stop cancels future callbacks. It does not wait for a callback that
	// is already running, so it is safe to call from inside one.
	Stop()
}

// Clock schedules repeating callbacks.
type Clock interface {
	Every(period time.Duration, fn func()) Ticker
}

// SystemClock schedules callbacks on wall-clock time using time.Ticker.
type SystemClock struct{}

// Every runs fn every period on its own goroutine until the ticker is stopped.
func (SystemClock) Every(period time.Duration, fn func()) Ticker {
	t := &systemTicker{
		ticker: time.NewTicker(period),
		stopCh: make(chan struct{}),
	}
	go t.loop(fn)
	return t
}

type systemTicker struct {
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func (t *systemTicker) loop(fn func()) {
	defer t.ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

func (t *systemTicker) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}

// ManualClock is a Clock driven by Advance instead of wall-clock time.
// Callbacks run on the goroutine calling Advance, in due order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	tickers []*manualTicker
}

type manualTicker struct {
	clock  *ManualClock
	period time.Duration
	next   time.Time
	seq    int
	fn     func()
}

// NewManualClock returns a ManualClock starting at the zero time.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Every registers fn to run each time Advance passes another period.
func (c *ManualClock) Every(period time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTicker{
		clock:  c,
		period: period,
		next:   c.now.Add(period),
		seq:    c.seq,
		fn:     fn,
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that comes due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := c.nextDue(target)
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.next
		due.next = due.next.Add(due.period)
		fn := due.fn
		c.mu.Unlock()

		fn()
	}
}

// nextDue returns the earliest ticker due at or before target. Caller holds mu.
func (c *ManualClock) nextDue(target time.Time) *manualTicker {
	var due *manualTicker
	for _, t := range c.tickers {
		if t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

// Active returns the number of tickers that have not been stopped.
func (c *ManualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Now returns the clock's virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (t *manualTicker) Stop() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, other := range c.tickers {
		if other == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}
