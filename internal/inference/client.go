package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/attune-app/attune/internal/reliability"
)

var (
	// ErrAuthRequired means the inference service rejected our credential.
	// Surfaced distinctly so the UI can prompt re-login instead of retrying.
	ErrAuthRequired = errors.New("inference: authentication required")
	// ErrMalformedResponse means the service answered but the payload is
	// unusable. Treated as a generic failure: no partial application.
	ErrMalformedResponse = errors.New("inference: malformed response")
)

// Response is the raw wire shape shared by both inference endpoints.
type Response struct {
	Success          bool               `json:"success"`
	PredictedEmotion string             `json:"predicted_emotion"`
	Confidence       float64            `json:"confidence"`
	AllScores        map[string]float64 `json:"all_scores"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	Recommendations  json.RawMessage    `json:"recommendations,omitempty"`
}

// Service is the inference endpoint seen by the coordinator.
type Service interface {
	InferText(ctx context.Context, text string) (Response, error)
	InferFrame(ctx context.Context, imageBase64 string) (Response, error)
}

// Client calls the remote emotion inference service over HTTP with a bearer
// credential. No client-side deadline beyond the transport timeout: a slow
// response is neutralized by the coordinator's staleness check, not aborted.
// Transport errors and retryable statuses (429, 5xx) get a short capped
// backoff before the error surfaces; auth rejections never retry.
type Client struct {
	baseURL string
	token   string
	client  *http.Client

	retryAttempts int
	retryBase     time.Duration
	retryCap      time.Duration
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client: &http.Client{
			Timeout: timeout,
		},
		retryAttempts: 2,
		retryBase:     200 * time.Millisecond,
		retryCap:      2 * time.Second,
	}
}

func (c *Client) InferText(ctx context.Context, text string) (Response, error) {
	return c.post(ctx, "/inference/text", map[string]string{"text": text})
}

func (c *Client) InferFrame(ctx context.Context, imageBase64 string) (Response, error) {
	return c.post(ctx, "/inference/frame", map[string]string{"image_data": imageBase64})
}

func (c *Client) post(ctx context.Context, path string, body any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		out, retryable, err := c.do(ctx, path, payload)
		if err == nil {
			return out, nil
		}
		if !retryable || attempt >= c.retryAttempts {
			return Response{}, err
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(reliability.ExponentialBackoff(attempt, c.retryBase, c.retryCap)):
		}
	}
}

func (c *Client) do(ctx context.Context, path string, payload []byte) (Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Response{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, true, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if reliability.IsAuthHTTPStatus(res.StatusCode) {
		return Response{}, false, ErrAuthRequired
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("inference http status %d: %s", res.StatusCode, string(snippet))
		return Response{}, reliability.IsRetryableHTTPStatus(res.StatusCode), err
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Response{}, false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !out.Success || strings.TrimSpace(out.PredictedEmotion) == "" {
		return Response{}, false, ErrMalformedResponse
	}
	return out, false, nil
}
