package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"time"

	"github.com/attune-app/attune/internal/emotion"
	"github.com/attune-app/attune/internal/observability"
	"github.com/attune-app/attune/internal/reccache"
)

// Modality names the sample kind for accounting.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityFrame Modality = "frame"
)

// Sample is one capture unit handed to the coordinator. Immutable once
// produced; no timestamp, ordering is producer sequencing.
type Sample struct {
	Modality Modality
	Text     string
	Frame    []byte
}

const sideChannelWriteTimeout = 2 * time.Second

// Coordinator dispatches samples to the inference service and decides
// whether their results may touch the emotion state.
//
// The gating flag is a single live cell shared by every producer and every
// in-flight response: it is read fresh at the moment of each check, never
// captured into a callback's scope. There is no request sequencing; multiple
// submits overlap freely and the last response to ARRIVE wins, even when it
// was sent earlier than one already applied. That ordering gap is inherited
// behavior, tolerated because a fresh correct sample follows within one
// sampling period.
type Coordinator struct {
	svc     Service
	store   *emotion.Store
	cache   reccache.Store
	metrics *observability.Metrics

	detecting atomic.Bool
	stopped   atomic.Bool

	onResume       func()
	onAuthRequired func()
	onFailure      func(msg string)
}

func NewCoordinator(svc Service, store *emotion.Store, cache reccache.Store, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		svc:     svc,
		store:   store,
		cache:   cache,
		metrics: metrics,
	}
}

// SetOnResume registers the out-of-band sample hook fired when detection is
// re-enabled, so the UI does not sit frozen until the next scheduled tick.
func (c *Coordinator) SetOnResume(hook func()) {
	c.onResume = hook
}

// SetOnAuthRequired registers the hook fired on credential rejection, kept
// separate from generic failures so the client can prompt re-login.
func (c *Coordinator) SetOnAuthRequired(hook func()) {
	c.onAuthRequired = hook
}

// SetOnFailure registers the hook fired on non-auth inference failures that
// happen while detection is on. Abandoned samples never reach it.
func (c *Coordinator) SetOnFailure(hook func(msg string)) {
	c.onFailure = hook
}

// Detecting reads the live gating cell.
func (c *Coordinator) Detecting() bool {
	return c.detecting.Load() && !c.stopped.Load()
}

// SetDetecting flips the gating cell. Re-enabling immediately triggers one
// out-of-band sample through the resume hook.
func (c *Coordinator) SetDetecting(on bool) {
	if c.stopped.Load() {
		return
	}
	was := c.detecting.Swap(on)
	if on && !was {
		if c.metrics != nil {
			c.metrics.SessionEvents.WithLabelValues("detection_resumed").Inc()
		}
		if c.onResume != nil {
			c.onResume()
		}
	} else if !on && was {
		if c.metrics != nil {
			c.metrics.SessionEvents.WithLabelValues("detection_paused").Inc()
		}
	}
}

// Stop terminally closes the gate. In-flight responses arriving afterwards
// are discarded; there is no way to abort the underlying calls.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
	c.detecting.Store(false)
}

// Submit dispatches a sample asynchronously. The scheduler already checked
// the gate at fire-time; it is re-checked here for safety, and once more
// when the response arrives, because the flag may flip while the request is
// in flight.
func (c *Coordinator) Submit(sample Sample) {
	if !c.Detecting() {
		return
	}

	go func() {
		start := time.Now()
		resp, err := c.dispatch(sample)
		elapsed := time.Since(start)

		if c.metrics != nil {
			c.metrics.ObserveInferenceLatency(elapsed)
			c.metrics.ObserveStage(string(sample.Modality)+"_round_trip", elapsed)
		}

		// Staleness check: the gate as it is NOW, not as it was at send
		// time. A pause or stop during flight silently voids the result,
		// success and failure alike.
		if !c.Detecting() {
			if c.metrics != nil {
				c.metrics.InferenceRequests.WithLabelValues(string(sample.Modality), "discarded_stale").Inc()
				c.metrics.ObserveStageIndicator("stale_discard")
			}
			return
		}

		if err != nil {
			c.reportFailure(sample.Modality, err)
			return
		}

		result := emotion.FromScores(resp.PredictedEmotion, resp.Confidence, resp.AllScores, resp.ProcessingTimeMS)
		c.store.Apply(result)
		if c.metrics != nil {
			c.metrics.InferenceRequests.WithLabelValues(string(sample.Modality), "applied").Inc()
		}
		c.writeSideChannel(result, resp.Recommendations)
	}()
}

func (c *Coordinator) dispatch(sample Sample) (Response, error) {
	// Deliberately not tied to the session context: an already-sent request
	// cannot be cancelled, only ignored on arrival.
	ctx := context.Background()
	switch sample.Modality {
	case ModalityFrame:
		return c.svc.InferFrame(ctx, base64.StdEncoding.EncodeToString(sample.Frame))
	default:
		return c.svc.InferText(ctx, sample.Text)
	}
}

func (c *Coordinator) reportFailure(modality Modality, err error) {
	if errors.Is(err, ErrAuthRequired) {
		c.store.SetError("authentication required")
		if c.metrics != nil {
			c.metrics.InferenceRequests.WithLabelValues(string(modality), "auth").Inc()
			c.metrics.ObserveStageIndicator("auth_required")
		}
		if c.onAuthRequired != nil {
			c.onAuthRequired()
		}
		return
	}
	c.store.SetError("emotion analysis unavailable")
	if c.metrics != nil {
		c.metrics.InferenceRequests.WithLabelValues(string(modality), "failed").Inc()
		if errors.Is(err, ErrMalformedResponse) {
			c.metrics.ObserveStageIndicator("malformed_response")
		}
	}
	if c.onFailure != nil {
		c.onFailure("emotion analysis unavailable")
	}
}

func (c *Coordinator) writeSideChannel(result emotion.Result, recommendations []byte) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelWriteTimeout)
	defer cancel()

	entry := reccache.Entry{
		Emotion:         result.Dominant,
		Confidence:      result.Confidence,
		Recommendations: recommendations,
		Timestamp:       time.Now().UTC(),
	}
	outcome := "ok"
	if err := c.cache.Write(ctx, entry); err != nil {
		// The live loop must not degrade because the hand-off cache is
		// unavailable; the next accepted result will try again.
		outcome = "error"
	}
	if c.metrics != nil {
		c.metrics.SideChannelWrites.WithLabelValues(outcome).Inc()
	}
}
