package sampling

import (
	"sync"
	"time"
)

// FrameSampler drives the periodic frame path of a capture session. After a
// warm-up delay it grabs the latest frame on a fixed interval and forwards it
// while the gate is up. The gate is read at fire-time from the live cell, so
// pausing detection leaves the ticker running: frames are still grabbed and
// dropped, which lets resume skip the device re-warm-up.
type FrameSampler struct {
	warmup   time.Duration
	interval time.Duration
	grab     func() ([]byte, bool)
	gate     func() bool
	forward  func([]byte)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewFrameSampler(warmup, interval time.Duration, grab func() ([]byte, bool), gate func() bool, forward func([]byte)) *FrameSampler {
	if warmup < 0 {
		warmup = 0
	}
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &FrameSampler{
		warmup:   warmup,
		interval: interval,
		grab:     grab,
		gate:     gate,
		forward:  forward,
	}
}

// Start launches the sampling loop. Calling Start on a running sampler is a
// no-op.
func (s *FrameSampler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		warm := time.NewTimer(s.warmup)
		defer warm.Stop()
		select {
		case <-stop:
			return
		case <-warm.C:
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *FrameSampler) tick() {
	if !s.gate() {
		return
	}
	frame, ok := s.grab()
	if !ok {
		// Surface not producing yet; skip this tick.
		return
	}
	s.forward(frame)
}

// SampleNow performs one out-of-band grab-and-forward, bypassing the ticker
// but not the gate. Used when detection resumes so the UI does not sit
// frozen until the next scheduled tick. A nil grab is a no-op.
func (s *FrameSampler) SampleNow() {
	s.tick()
}

// Stop cancels the loop and waits for it to exit, so no forward can fire
// after Stop returns. Idempotent.
func (s *FrameSampler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}
