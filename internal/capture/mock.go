package capture

import "sync"

// MockDevice is an in-process device for tests. Its frame can be set at any
// time; Latest reports false until the first SetFrame, imitating a camera
// that has not warmed up yet.
type MockDevice struct {
	mu      sync.Mutex
	OpenErr error
	opens   int
	feed    *mockFeed
}

func NewMockDevice() *MockDevice { return &MockDevice{} }

func (d *MockDevice) Open(_ Constraints) (Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.opens++
	d.feed = &mockFeed{}
	return d.feed, nil
}

func (d *MockDevice) SetFrame(frame []byte) {
	d.mu.Lock()
	feed := d.feed
	d.mu.Unlock()
	if feed != nil {
		feed.set(frame)
	}
}

func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type mockFeed struct {
	mu     sync.Mutex
	frame  []byte
	closed bool
}

func (f *mockFeed) set(frame []byte) {
	f.mu.Lock()
	if !f.closed {
		f.frame = frame
	}
	f.mu.Unlock()
}

func (f *mockFeed) Latest() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.frame == nil {
		return nil, false
	}
	return f.frame, true
}

func (f *mockFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.frame = nil
	f.mu.Unlock()
	return nil
}
