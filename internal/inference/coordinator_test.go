package inference

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/attune-app/attune/internal/emotion"
	"github.com/attune-app/attune/internal/reccache"
)

// gateService is a controllable inference backend: each call parks until the
// test releases it, which makes in-flight windows explicit.
type gateService struct {
	mu       sync.Mutex
	calls    int
	started  chan string
	release  chan struct{}
	response Response
	err      error
}

func newGateService() *gateService {
	return &gateService{
		started: make(chan string, 16),
		release: make(chan struct{}),
		response: Response{
			Success:          true,
			PredictedEmotion: "joy",
			Confidence:       0.8,
			AllScores:        map[string]float64{"joy": 0.8, "sadness": 0.1},
		},
	}
}

func (s *gateService) InferText(_ context.Context, text string) (Response, error) {
	return s.serve(text)
}

func (s *gateService) InferFrame(_ context.Context, _ string) (Response, error) {
	return s.serve("<frame>")
}

func (s *gateService) serve(id string) (Response, error) {
	s.mu.Lock()
	s.calls++
	resp, err := s.response, s.err
	s.mu.Unlock()
	s.started <- id
	<-s.release
	return resp, err
}

func (s *gateService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting: %s", msg)
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestCoordinatorAppliesResultAndWritesThrough(t *testing.T) {
	svc := newGateService()
	store := emotion.NewStore()
	cache := reccache.NewInMemoryStore()
	c := NewCoordinator(svc, store, cache, nil)
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "pretty great day"})
	<-svc.started
	close(svc.release)

	waitFor(t, func() bool { return store.Current() != nil }, "result applied")
	cur := store.Current()
	if cur.Dominant != "happy" {
		t.Fatalf("Dominant = %q, want happy (mapped from joy)", cur.Dominant)
	}

	waitFor(t, func() bool {
		e, _ := cache.Read(context.Background())
		return e != nil
	}, "side-channel written")
	entry, _ := cache.Read(context.Background())
	if entry.Emotion != "happy" || entry.Confidence != cur.Confidence {
		t.Fatalf("side-channel entry = %+v", entry)
	}
}

func TestCoordinatorGateBlocksDispatch(t *testing.T) {
	svc := newGateService()
	c := NewCoordinator(svc, emotion.NewStore(), nil, nil)

	// Gate never opened: nothing may reach the service.
	c.Submit(Sample{Modality: ModalityText, Text: "ignored"})
	time.Sleep(20 * time.Millisecond)
	if n := svc.callCount(); n != 0 {
		t.Fatalf("dispatches while gated off = %d, want 0", n)
	}

	// Off-then-on with no elapsed time: still zero calls from the off
	// window, and exactly one out-of-band sample from the resume hook.
	resumed := 0
	c.SetOnResume(func() { resumed++ })
	c.SetDetecting(false)
	c.SetDetecting(true)
	if resumed != 1 {
		t.Fatalf("resume hook fired %d times, want exactly 1", resumed)
	}
	// Re-asserting true is not a resume.
	c.SetDetecting(true)
	if resumed != 1 {
		t.Fatalf("redundant SetDetecting(true) re-fired resume hook")
	}
}

func TestCoordinatorStalenessDiscard(t *testing.T) {
	svc := newGateService()
	store := emotion.NewStore()
	c := NewCoordinator(svc, store, nil, nil)
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "sent while detecting"})
	<-svc.started

	// Flag flips while the request is in flight.
	c.SetDetecting(false)
	close(svc.release)

	time.Sleep(30 * time.Millisecond)
	if got := store.Current(); got != nil {
		t.Fatalf("stale response mutated the store: %+v", got)
	}
}

func TestCoordinatorStopDiscardsLateArrivals(t *testing.T) {
	svc := newGateService()
	store := emotion.NewStore()
	c := NewCoordinator(svc, store, nil, nil)
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityFrame, Frame: []byte("jpeg")})
	<-svc.started
	c.Stop()
	close(svc.release)

	time.Sleep(30 * time.Millisecond)
	if got := store.Current(); got != nil {
		t.Fatalf("post-stop response mutated the store: %+v", got)
	}
	// A stopped coordinator refuses new dispatches and resume attempts.
	c.Submit(Sample{Modality: ModalityText, Text: "late"})
	c.SetDetecting(true)
	time.Sleep(10 * time.Millisecond)
	if n := svc.callCount(); n != 1 {
		t.Fatalf("calls after Stop = %d, want 1", n)
	}
}

func TestCoordinatorFailureWhilePausedIsSwallowed(t *testing.T) {
	svc := newGateService()
	svc.err = ErrMalformedResponse
	store := emotion.NewStore()
	c := NewCoordinator(svc, store, nil, nil)
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "will fail"})
	<-svc.started
	c.SetDetecting(false)
	close(svc.release)

	time.Sleep(30 * time.Millisecond)
	if msg := store.Err(); msg != "" {
		t.Fatalf("error from abandoned sample surfaced: %q", msg)
	}
}

func TestCoordinatorFailureWhileDetectingSurfaces(t *testing.T) {
	svc := newGateService()
	svc.err = ErrMalformedResponse
	store := emotion.NewStore()
	c := NewCoordinator(svc, store, nil, nil)
	failures := make(chan string, 1)
	c.SetOnFailure(func(msg string) { failures <- msg })
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "will fail"})
	<-svc.started
	close(svc.release)

	waitFor(t, func() bool { return store.Err() != "" }, "error surfaced")
	if got := store.Current(); got != nil {
		t.Fatalf("failure applied a partial result: %+v", got)
	}
	select {
	case msg := <-failures:
		if msg != "emotion analysis unavailable" {
			t.Fatalf("failure message = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure hook not fired")
	}
}

func TestCoordinatorAuthFailureIsDistinct(t *testing.T) {
	svc := newGateService()
	svc.err = ErrAuthRequired
	store := emotion.NewStore()
	c := NewCoordinator(svc, store, nil, nil)
	authCh := make(chan struct{}, 1)
	c.SetOnAuthRequired(func() { authCh <- struct{}{} })
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "expired token"})
	<-svc.started
	close(svc.release)

	select {
	case <-authCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("auth hook not fired")
	}
	if store.Err() != "authentication required" {
		t.Fatalf("store error = %q", store.Err())
	}
}

// lastArrivalService resolves calls in the order the test releases them,
// regardless of send order.
type lastArrivalService struct {
	mu      sync.Mutex
	pending map[string]chan Response
	started chan string
}

func (s *lastArrivalService) InferText(_ context.Context, text string) (Response, error) {
	s.mu.Lock()
	ch := make(chan Response, 1)
	s.pending[text] = ch
	s.mu.Unlock()
	s.started <- text
	return <-ch, nil
}

func (s *lastArrivalService) InferFrame(context.Context, string) (Response, error) {
	return Response{}, ErrMalformedResponse
}

func (s *lastArrivalService) resolve(text, label string) {
	s.mu.Lock()
	ch := s.pending[text]
	s.mu.Unlock()
	ch <- Response{Success: true, PredictedEmotion: label, Confidence: 0.9}
}

func TestCoordinatorLastArrivalWins(t *testing.T) {
	svc := &lastArrivalService{
		pending: make(map[string]chan Response),
		started: make(chan string, 4),
	}
	store := emotion.NewStore()
	applied := make(chan string, 4)
	store.SetOnApply(func(r emotion.Result) { applied <- r.Dominant })

	c := NewCoordinator(svc, store, nil, nil)
	c.SetDetecting(true)

	c.Submit(Sample{Modality: ModalityText, Text: "first"})
	<-svc.started
	c.Submit(Sample{Modality: ModalityText, Text: "second"})
	<-svc.started

	// The later send resolves first; the slow early request then overwrites
	// it. Arrival order wins; there are no sequence numbers.
	svc.resolve("second", "calm")
	if got := <-applied; got != "calm" {
		t.Fatalf("first applied = %q, want calm", got)
	}
	svc.resolve("first", "sadness")
	if got := <-applied; got != "sad" {
		t.Fatalf("second applied = %q, want sad", got)
	}
	if cur := store.Current(); cur == nil || cur.Dominant != "sad" {
		t.Fatalf("final state = %+v, want the late arrival", cur)
	}
}
