// Package notify coalesces bursts of import events into grouped
// notifications and delivers them over Telegram.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/javi11/mediahook/internal/events"
)

// FlushFunc receives the events of one closed window in arrival order.
type FlushFunc func(key string, evs []events.ImportEvent)

// Aggregator batches events per grouping key. The first offer for a key
// opens a window with a fixed-length timer; later offers join the window
// without extending it. When the timer fires the window closes atomically
// and its events flush as one group.
type Aggregator struct {
	window time.Duration
	flush  FlushFunc
	clock  Clock
	log    *slog.Logger

	// registry lock only; each window has its own mutex so a slow flush
	// on one key never blocks offers on another
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	key      string
	openedAt time.Time
	timer    Timer

	mu     sync.Mutex
	events []events.ImportEvent
	closed bool
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock replaces the wall clock (tests).
func WithClock(clock Clock) AggregatorOption {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// NewAggregator creates an aggregator with the given window length.
func NewAggregator(windowLen time.Duration, flush FlushFunc, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		window:  windowLen,
		flush:   flush,
		clock:   realClock{},
		windows: make(map[string]*window),
		log:     slog.Default().With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Offer adds an event to its key's window, opening one if needed. An
// offer is never lost: if it races the window's close, it lands in a
// fresh window instead.
func (a *Aggregator) Offer(ev events.ImportEvent) {
	key := ev.GroupKey()

	for {
		a.mu.Lock()
		w, ok := a.windows[key]
		if !ok {
			w = &window{key: key, openedAt: time.Now()}
			a.windows[key] = w
			// fixed window: the timer is armed once and never reset
			w.timer = a.clock.AfterFunc(a.window, func() {
				a.close(w)
			})
			a.log.Debug("window opened", "key", key, "window", a.window)
		}
		a.mu.Unlock()

		w.mu.Lock()
		if w.closed {
			// closed between registry lookup and append; try again
			w.mu.Unlock()
			continue
		}
		w.events = append(w.events, ev)
		w.mu.Unlock()
		return
	}
}

// close removes the window from the registry, marks it closed and flushes
// its events. Safe to call twice; the second call is a no-op.
func (a *Aggregator) close(w *window) {
	a.mu.Lock()
	if current, ok := a.windows[w.key]; ok && current == w {
		delete(a.windows, w.key)
	}
	a.mu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	evs := w.events
	w.mu.Unlock()

	if len(evs) == 0 {
		return
	}

	a.log.Debug("window closed", "key", w.key, "events", len(evs),
		"open_for", time.Since(w.openedAt))
	a.flush(w.key, evs)
}

// FlushAll closes every open window immediately. Called on shutdown so
// buffered events are not lost.
func (a *Aggregator) FlushAll() {
	a.mu.Lock()
	open := make([]*window, 0, len(a.windows))
	for _, w := range a.windows {
		open = append(open, w)
	}
	a.mu.Unlock()

	for _, w := range open {
		w.timer.Stop()
		a.close(w)
	}
}

// OpenWindows reports how many windows are currently open.
func (a *Aggregator) OpenWindows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.windows)
}
