package capture

import (
	"errors"
	"sync"
)

var (
	// ErrPermissionDenied means the user rejected the media permission
	// prompt. Fatal to the capture session; the user must re-trigger.
	ErrPermissionDenied = errors.New("capture: permission denied")
	// ErrDeviceUnavailable means no usable camera was found or it is held
	// by another application.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
	// ErrAlreadyAcquired means Acquire was called while a previous
	// acquisition is still live. The camera is strictly exclusive.
	ErrAlreadyAcquired = errors.New("capture: device already acquired")
)

// Constraints mirrors the media constraints requested from the device.
type Constraints struct {
	Width  int
	Height int
}

// Feed delivers encoded still frames from an open device.
type Feed interface {
	// Latest returns the most recent frame, or (nil, false) while the
	// device has not produced one yet. Callers treat false as "skip this
	// tick", never as an error.
	Latest() ([]byte, bool)
	// Close stops the feed. Idempotent.
	Close() error
}

// Device opens an exclusive media source.
type Device interface {
	Open(Constraints) (Feed, error)
}

// Manager owns the lifetime of the camera device. Acquire/Release bracket
// every capture session; Release is guaranteed on every termination path and
// is safe to call redundantly, including when nothing was ever acquired.
type Manager struct {
	mu     sync.Mutex
	device Device
	feed   Feed
}

func NewManager(device Device) *Manager {
	return &Manager{device: device}
}

func (m *Manager) Acquire(c Constraints) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feed != nil {
		return ErrAlreadyAcquired
	}
	if m.device == nil {
		return ErrDeviceUnavailable
	}
	feed, err := m.device.Open(c)
	if err != nil {
		return err
	}
	m.feed = feed
	return nil
}

// GrabFrame returns the latest frame from the live surface. While released,
// or before the surface warms up, it returns (nil, false).
func (m *Manager) GrabFrame() ([]byte, bool) {
	m.mu.Lock()
	feed := m.feed
	m.mu.Unlock()
	if feed == nil {
		return nil, false
	}
	return feed.Latest()
}

func (m *Manager) Acquired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed != nil
}

// Release stops the device feed and detaches it. Idempotent; a timer that
// fires against a released manager sees GrabFrame return (nil, false).
func (m *Manager) Release() {
	m.mu.Lock()
	feed := m.feed
	m.feed = nil
	m.mu.Unlock()
	if feed != nil {
		_ = feed.Close()
	}
}
