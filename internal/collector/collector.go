// Package collector coalesces real-time index events into batched flushes.
//
// Every Add flushes immediately when the sink is idle. Events only accumulate
// while the sink reports busy; they are then delivered together on the next
// idle Add or when the debounce timer fires.
package collector

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// Sink receives a JSON array of events. It must call done exactly once with
// the outcome; the collector only logs it.
type Sink func(batch []byte, done func(n int, err error))

// Options configures a Collector.
type Options struct {
	// IsBusy reports whether the sink is still processing a previous batch.
	IsBusy func() bool
	// Timeout is the debounce window.
	Timeout time.Duration
	Flush   Sink
	Logger  *slog.Logger
}

// Collector is safe for concurrent use.
type Collector struct {
	isBusy  func() bool
	timeout time.Duration
	sink    Sink
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []json.RawMessage
	timer   *time.Timer
	stopped bool
}

// New creates a Collector. A nil IsBusy never reports busy.
func New(opts Options) *Collector {
	isBusy := opts.IsBusy
	if isBusy == nil {
		isBusy = func() bool { return false }
	}
	return &Collector{
		isBusy:  isBusy,
		timeout: opts.Timeout,
		sink:    opts.Flush,
		logger:  logging.OrDefault(opts.Logger),
	}
}

// Add queues one event and flushes right away if the sink is idle.
func (c *Collector) Add(event json.RawMessage) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, event)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.timeout, c.onTimer)
	}
	c.mu.Unlock()

	if !c.isBusy() {
		c.flush()
	}
}

func (c *Collector) onTimer() {
	if c.isBusy() {
		c.mu.Lock()
		if !c.stopped && len(c.queue) > 0 {
			c.timer = time.AfterFunc(c.timeout, c.onTimer)
		} else {
			c.timer = nil
		}
		c.mu.Unlock()
		c.logger.Debug("realtime_flush_deferred", slog.Duration("timeout", c.timeout))
		return
	}
	c.flush()
}

// flush hands the whole queue to the sink. The sink runs outside the lock.
func (c *Collector) flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.stopped || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	events := c.queue
	c.queue = nil
	c.mu.Unlock()

	batch, err := json.Marshal(events)
	if err != nil {
		c.logger.Error("realtime_batch_encode_failed",
			slog.Int("batch_size", len(events)),
			slog.String("error", err.Error()))
		return
	}

	size := len(events)
	c.sink(batch, func(n int, err error) {
		if err != nil {
			c.logger.Error("realtime_flush_failed",
				slog.Int("batch_size", size),
				slog.String("error", err.Error()))
			return
		}
		c.logger.Debug("realtime_flush_done",
			slog.Int("batch_size", size),
			slog.Int("indexed", n))
	})
}

// Pending returns the number of queued events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Stop disarms the timer and discards queued events. Safe to call multiple
// times.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if n := len(c.queue); n > 0 {
		c.logger.Warn("realtime_events_discarded", slog.Int("count", n))
	}
	c.queue = nil
}
