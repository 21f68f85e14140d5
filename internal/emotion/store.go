package emotion

import "sync"

// Store is the single source of truth for the emotion currently showing.
// It is a one-slot register: Apply replaces the previous result wholesale,
// there is no history. A nil current result means "no result yet", which is
// distinct from a low-confidence result.
type Store struct {
	mu      sync.RWMutex
	current *Result
	lastErr string
	onApply func(Result)
}

func NewStore() *Store {
	return &Store{}
}

// SetOnApply registers a hook invoked (outside the lock) whenever a result
// is applied. Used for display updates and the side-channel write-through.
func (s *Store) SetOnApply(hook func(Result)) {
	s.mu.Lock()
	s.onApply = hook
	s.mu.Unlock()
}

// Apply replaces the current result and clears any transient error.
func (s *Store) Apply(r Result) {
	s.mu.Lock()
	cp := r
	cp.Predictions = append([]Prediction(nil), r.Predictions...)
	s.current = &cp
	s.lastErr = ""
	hook := s.onApply
	s.mu.Unlock()

	if hook != nil {
		hook(r)
	}
}

// Current returns a copy of the latest result, or nil when none has been
// accepted yet.
func (s *Store) Current() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	cp.Predictions = append([]Prediction(nil), s.current.Predictions...)
	return &cp
}

// SetError records a transient inference error message. It does not disturb
// the current result; the UI degrades to "no live emotion", never a crash.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset clears both slots. Used when a capture session restarts input from
// scratch (e.g. the text area is emptied below the analysis threshold).
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = nil
	s.lastErr = ""
	s.mu.Unlock()
}
