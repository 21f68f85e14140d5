package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attune-app/attune/internal/emotion"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientFrame   MessageType = "client_frame"
	TypeClientText    MessageType = "client_text"
	TypeClientControl MessageType = "client_control"
	TypeEmotionUpdate MessageType = "emotion_update"
	TypeCaptureState  MessageType = "capture_state"
	TypeErrorEvent    MessageType = "error_event"
)

// Client control actions.
const (
	ActionStartCapture    = "start_capture"
	ActionStopCapture     = "stop_capture"
	ActionPauseDetection  = "pause_detection"
	ActionResumeDetection = "resume_detection"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientFrame carries one camera still, JPEG bytes base64 encoded.
type ClientFrame struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	ImageBase64 string      `json:"image_base64"`
	TSMs        int64       `json:"ts_ms"`
}

// ClientText carries the current journal draft after each edit. The server
// debounces; the client sends on every change.
type ClientText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	TSMs      int64       `json:"ts_ms"`
}

// EmotionUpdate pushes the full replacement state after each accepted
// inference result. Ranked holds at most five entries, highest first.
type EmotionUpdate struct {
	Type             MessageType          `json:"type"`
	SessionID        string               `json:"session_id"`
	Source           string               `json:"source"`
	Dominant         string               `json:"dominant_emotion"`
	Confidence       float64              `json:"confidence"`
	Ranked           []emotion.Prediction `json:"predictions"`
	ProcessingTimeMS int64                `json:"processing_time_ms,omitempty"`
	TSMs             int64                `json:"ts_ms"`
}

// CaptureState announces lifecycle transitions and the elapsed clock.
type CaptureState struct {
	Type             MessageType `json:"type"`
	SessionID        string      `json:"session_id"`
	Status           string      `json:"status"`
	DetectionEnabled bool        `json:"detection_enabled"`
	ElapsedSeconds   int64       `json:"elapsed_seconds"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientFrame:
		var msg ClientFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.ImageBase64 == "" {
			return nil, errors.New("invalid client_frame")
		}
		return msg, nil
	case TypeClientText:
		var msg ClientText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		// Empty text is valid, it clears the draft.
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_text")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionStartCapture, ActionStopCapture, ActionPauseDetection, ActionResumeDetection:
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
