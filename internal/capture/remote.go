package capture

import "sync"

// RemoteDevice is the browser-fed camera: the connected client owns the real
// hardware and streams encoded stills over the session websocket. Opening it
// attaches a single-slot frame surface; Push routes incoming frames to the
// open surface, dropping them while nothing is acquired.
type RemoteDevice struct {
	mu   sync.Mutex
	feed *remoteFeed
}

func NewRemoteDevice() *RemoteDevice {
	return &RemoteDevice{}
}

func (d *RemoteDevice) Open(_ Constraints) (Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.feed != nil && !d.feed.isClosed() {
		return nil, ErrAlreadyAcquired
	}
	d.feed = &remoteFeed{}
	return d.feed, nil
}

// Push hands the latest client frame to the open surface. New frames
// overwrite unconsumed ones; frames never queue. Pushes against a released
// surface are dropped silently.
func (d *RemoteDevice) Push(frame []byte) {
	if len(frame) == 0 {
		return
	}
	d.mu.Lock()
	feed := d.feed
	d.mu.Unlock()
	if feed != nil {
		feed.push(frame)
	}
}

// remoteFeed is a one-slot overwrite mailbox. Latest reports false until the
// first frame arrives, which is how device warm-up shows up to the sampler.
type remoteFeed struct {
	mu     sync.Mutex
	frame  []byte
	closed bool
}

func (f *remoteFeed) push(frame []byte) {
	f.mu.Lock()
	if !f.closed {
		f.frame = frame
	}
	f.mu.Unlock()
}

func (f *remoteFeed) Latest() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.frame == nil {
		return nil, false
	}
	return f.frame, true
}

func (f *remoteFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.frame = nil
	f.mu.Unlock()
	return nil
}

func (f *remoteFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
