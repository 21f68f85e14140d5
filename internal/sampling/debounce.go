package sampling

import (
	"strings"
	"sync"
	"time"
)

// TextDebouncer collapses a stream of content edits into at most one sample
// per pause-in-typing. Every Update restarts the single debounce window;
// only an undisturbed expiry forwards the text current at that moment.
// Text below the minimum length clears instead of dispatching, matching the
// "too short to analyze" behavior of the check-in editor.
type TextDebouncer struct {
	window   time.Duration
	minRunes int
	forward  func(string)
	clear    func()

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	stopped bool
}

func NewTextDebouncer(window time.Duration, minRunes int, forward func(string), clear func()) *TextDebouncer {
	if window <= 0 {
		window = 1500 * time.Millisecond
	}
	if minRunes <= 0 {
		minRunes = 10
	}
	return &TextDebouncer{
		window:   window,
		minRunes: minRunes,
		forward:  forward,
		clear:    clear,
	}
}

// Update records the latest content and restarts the debounce window.
func (d *TextDebouncer) Update(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = text
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.expire)
}

func (d *TextDebouncer) expire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	text := d.pending
	d.timer = nil
	d.mu.Unlock()

	if len([]rune(strings.TrimSpace(text))) < d.minRunes {
		if d.clear != nil {
			d.clear()
		}
		return
	}
	d.forward(text)
}

// Stop cancels any armed window. A timer that already fired and is waiting
// on the lock observes stopped and drops its dispatch. Idempotent.
func (d *TextDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
