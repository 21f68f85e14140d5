package checkin

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/attune-app/attune/internal/capture"
	"github.com/attune-app/attune/internal/emotion"
	"github.com/attune-app/attune/internal/inference"
	"github.com/attune-app/attune/internal/observability"
	"github.com/attune-app/attune/internal/protocol"
	"github.com/attune-app/attune/internal/reccache"
	"github.com/attune-app/attune/internal/sampling"
	"github.com/attune-app/attune/internal/session"
)

const (
	criticalSendTimeout = 600 * time.Millisecond
	elapsedTickInterval = time.Second
)

// Orchestrator owns the per-connection capture loop: camera acquisition,
// frame sampling, text debouncing, and the inference coordinator that feeds
// the emotion state back to the client.
type Orchestrator struct {
	sessions *session.Manager
	infer    inference.Service
	cache    reccache.Store
	metrics  *observability.Metrics

	frameWarmup    time.Duration
	frameInterval  time.Duration
	debounceWindow time.Duration
	textMinRunes   int
	constraints    capture.Constraints
}

func NewOrchestrator(
	sessions *session.Manager,
	infer inference.Service,
	cache reccache.Store,
	metrics *observability.Metrics,
	frameWarmup time.Duration,
	frameInterval time.Duration,
	debounceWindow time.Duration,
	textMinRunes int,
	constraints capture.Constraints,
) *Orchestrator {
	if frameWarmup <= 0 {
		frameWarmup = time.Second
	}
	if frameInterval <= 0 {
		frameInterval = 1500 * time.Millisecond
	}
	if debounceWindow <= 0 {
		debounceWindow = 1500 * time.Millisecond
	}
	return &Orchestrator{
		sessions:       sessions,
		infer:          infer,
		cache:          cache,
		metrics:        metrics,
		frameWarmup:    frameWarmup,
		frameInterval:  frameInterval,
		debounceWindow: debounceWindow,
		textMinRunes:   textMinRunes,
		constraints:    constraints,
	}
}

// RunConnection drives one websocket connection through the capture
// lifecycle. Everything it starts is torn down on every exit path, so a
// dropped connection can never leave the camera held.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	device := capture.NewRemoteDevice()
	camera := capture.NewManager(device)

	store := emotion.NewStore()
	coord := inference.NewCoordinator(o.infer, store, o.cache, o.metrics)

	var (
		sampler   *sampling.FrameSampler
		debouncer *sampling.TextDebouncer
	)

	teardown := func() {
		if sampler != nil {
			sampler.Stop()
		}
		if debouncer != nil {
			debouncer.Stop()
		}
		coord.Stop()
		camera.Release()
	}
	defer teardown()

	store.SetOnApply(func(r emotion.Result) {
		start := time.Now()
		o.send(outbound, protocol.EmotionUpdate{
			Type:             protocol.TypeEmotionUpdate,
			SessionID:        s.ID,
			Source:           "inference",
			Dominant:         r.Dominant,
			Confidence:       r.Confidence,
			Ranked:           r.Predictions,
			ProcessingTimeMS: r.ProcessingTimeMS,
			TSMs:             time.Now().UnixMilli(),
		})
		if o.metrics != nil {
			o.metrics.ObserveStage("apply_to_emit", time.Since(start))
		}
	})

	coord.SetOnFailure(func(msg string) {
		o.send(outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.ID,
			Code:      "inference_failed",
			Source:    "inference",
			Retryable: true,
			Detail:    msg,
		})
	})

	coord.SetOnAuthRequired(func() {
		o.send(outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.ID,
			Code:      "auth_required",
			Source:    "inference",
			Retryable: false,
			Detail:    "inference credentials rejected",
		})
	})

	sampler = sampling.NewFrameSampler(
		o.frameWarmup,
		o.frameInterval,
		camera.GrabFrame,
		coord.Detecting,
		func(frame []byte) {
			coord.Submit(inference.Sample{Modality: inference.ModalityFrame, Frame: frame})
		},
	)

	coord.SetOnResume(func() {
		resumeAt := time.Now()
		sampler.SampleNow()
		if o.metrics != nil {
			o.metrics.ObserveStage("resume_to_sample", time.Since(resumeAt))
		}
	})

	debouncer = sampling.NewTextDebouncer(
		o.debounceWindow,
		o.textMinRunes,
		func(text string) {
			coord.Submit(inference.Sample{Modality: inference.ModalityText, Text: text})
		},
		func() {
			// Draft shrank below the analyzable minimum: drop the shown
			// emotion rather than keep a stale one for vanished text.
			store.Reset()
			o.send(outbound, protocol.EmotionUpdate{
				Type:      protocol.TypeEmotionUpdate,
				SessionID: s.ID,
				Source:    "cleared",
				TSMs:      time.Now().UnixMilli(),
			})
		},
	)

	sendState := func() {
		snap, err := o.sessions.Get(s.ID)
		if err != nil {
			return
		}
		o.send(outbound, protocol.CaptureState{
			Type:             protocol.TypeCaptureState,
			SessionID:        snap.ID,
			Status:           string(snap.Status),
			DetectionEnabled: snap.DetectionEnabled,
			ElapsedSeconds:   snap.ElapsedSeconds(),
		})
	}

	sendError := func(code, detail string, retryable bool) {
		o.send(outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.ID,
			Code:      code,
			Source:    "capture",
			Retryable: retryable,
			Detail:    detail,
		})
	}

	elapsed := time.NewTicker(elapsedTickInterval)
	defer elapsed.Stop()

	for {
		select {
		case <-ctx.Done():
			o.endSession(s.ID, "connection_closed")
			return nil
		case <-elapsed.C:
			snap, err := o.sessions.Get(s.ID)
			if err != nil || snap.Status != session.StatusActive {
				continue
			}
			sendState()
		case msg, ok := <-inbound:
			if !ok {
				o.endSession(s.ID, "connection_closed")
				return nil
			}
			switch m := msg.(type) {
			case protocol.ClientFrame:
				_ = o.sessions.Touch(s.ID)
				if !camera.Acquired() {
					continue
				}
				frame, err := base64.StdEncoding.DecodeString(m.ImageBase64)
				if err != nil || len(frame) == 0 {
					continue
				}
				device.Push(frame)
			case protocol.ClientText:
				_ = o.sessions.Touch(s.ID)
				debouncer.Update(m.Text)
			case protocol.ClientControl:
				_ = o.sessions.Touch(s.ID)
				switch m.Action {
				case protocol.ActionStartCapture:
					if err := camera.Acquire(o.constraints); err != nil {
						o.countSessionEvent("capture_start_failed")
						switch {
						case errors.Is(err, capture.ErrAlreadyAcquired):
							// Start pressed twice. The running capture stands.
							sendState()
						case errors.Is(err, capture.ErrPermissionDenied):
							sendError("camera_permission_denied", err.Error(), false)
						default:
							sendError("camera_unavailable", err.Error(), true)
						}
						continue
					}
					if _, err := o.sessions.Activate(s.ID); err != nil {
						camera.Release()
						sendError("session_not_startable", err.Error(), false)
						continue
					}
					sampler.Start()
					coord.SetDetecting(true)
					o.countSessionEvent("capture_started")
					sendState()
				case protocol.ActionStopCapture:
					teardown()
					o.endSession(s.ID, "stopped_by_client")
					sendState()
				case protocol.ActionPauseDetection:
					if _, err := o.sessions.SetDetection(s.ID, false); err != nil {
						continue
					}
					coord.SetDetecting(false)
					o.countSessionEvent("detection_paused_by_client")
					sendState()
				case protocol.ActionResumeDetection:
					if _, err := o.sessions.SetDetection(s.ID, true); err != nil {
						continue
					}
					coord.SetDetecting(true)
					o.countSessionEvent("detection_resumed_by_client")
					sendState()
				}
			}
		}
	}
}

func (o *Orchestrator) endSession(sessionID, reason string) {
	if _, err := o.sessions.End(sessionID); err == nil {
		o.countSessionEvent("session_ended_" + reason)
	}
}

func (o *Orchestrator) countSessionEvent(event string) {
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

// send delivers outbound messages without ever blocking the loop. State and
// error events get a bounded wait; emotion updates are droppable bursts, a
// fresh one follows within a sampling period.
func (o *Orchestrator) send(outbound chan<- any, msg any) {
	critical := false
	switch msg.(type) {
	case protocol.ErrorEvent, protocol.CaptureState:
		critical = true
	}

	if critical {
		timer := time.NewTimer(criticalSendTimeout)
		defer timer.Stop()
		select {
		case outbound <- msg:
			o.countOutbound(msg, "delivered")
		case <-timer.C:
			o.countOutbound(msg, "timeout")
		}
		return
	}

	select {
	case outbound <- msg:
		o.countOutbound(msg, "delivered")
	default:
		o.countOutbound(msg, "dropped")
	}
}

func (o *Orchestrator) countOutbound(msg any, result string) {
	if o.metrics == nil {
		return
	}
	msgType := "unknown"
	switch m := msg.(type) {
	case protocol.EmotionUpdate:
		msgType = string(m.Type)
	case protocol.CaptureState:
		msgType = string(m.Type)
	case protocol.ErrorEvent:
		msgType = string(m.Type)
	}
	o.metrics.WSMessages.WithLabelValues("outbound", msgType, result).Inc()
}
