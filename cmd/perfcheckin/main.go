// Command perfcheckin replays synthetic check-in sessions against a running
// Attune server and reports emotion round-trip latency percentiles.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/attune-app/attune/internal/protocol"
)

type options struct {
	baseURL       string
	userID        string
	frames        int
	frameBytes    int
	frameInterval time.Duration
	text          string
	updateTimeout time.Duration
	verbose       bool
}

type createSessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfcheckin: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfcheckin: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var frameIntervalMS int
	var updateTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "Attune base URL")
	flag.StringVar(&cfg.userID, "user-id", "perf-replay", "user_id used for the synthetic session")
	flag.IntVar(&cfg.frames, "frames", 20, "number of synthetic frames to push")
	flag.IntVar(&cfg.frameBytes, "frame-bytes", 24*1024, "size of each synthetic frame payload")
	flag.IntVar(&frameIntervalMS, "frame-interval-ms", 500, "delay between pushed frames in milliseconds")
	flag.StringVar(&cfg.text, "text", "feeling a little scattered today but hopeful", "journal draft to type")
	flag.IntVar(&updateTimeoutMS, "update-timeout-ms", 10000, "timeout waiting for each emotion update in milliseconds")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.frames <= 0 {
		return options{}, fmt.Errorf("frames must be > 0")
	}
	if cfg.frameBytes <= 0 {
		return options{}, fmt.Errorf("frame-bytes must be > 0")
	}
	cfg.frameInterval = time.Duration(frameIntervalMS) * time.Millisecond
	cfg.updateTimeout = time.Duration(updateTimeoutMS) * time.Millisecond
	if cfg.frameInterval <= 0 || cfg.updateTimeout <= 0 {
		return options{}, fmt.Errorf("intervals must be positive")
	}
	return cfg, nil
}

func run(cfg options) error {
	sessionID, err := createSession(cfg)
	if err != nil {
		return err
	}
	if cfg.verbose {
		fmt.Printf("session %s created\n", sessionID)
	}

	wsURL, err := websocketURL(cfg.baseURL, sessionID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	updates := make(chan time.Time, 64)
	go readUpdates(conn, updates, cfg.verbose)

	send := func(msg any) error {
		return conn.WriteJSON(msg)
	}

	if err := send(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionStartCapture,
	}); err != nil {
		return fmt.Errorf("start_capture: %w", err)
	}

	frame := syntheticFrame(cfg.frameBytes)
	latencies := make([]time.Duration, 0, cfg.frames)

	for i := 0; i < cfg.frames; i++ {
		sentAt := time.Now()
		if err := send(protocol.ClientFrame{
			Type:        protocol.TypeClientFrame,
			SessionID:   sessionID,
			ImageBase64: frame,
			TSMs:        sentAt.UnixMilli(),
		}); err != nil {
			return fmt.Errorf("push frame %d: %w", i, err)
		}

		select {
		case arrivedAt := <-updates:
			latencies = append(latencies, arrivedAt.Sub(sentAt))
		case <-time.After(cfg.updateTimeout):
			if cfg.verbose {
				fmt.Printf("frame %d: no emotion update within %s\n", i, cfg.updateTimeout)
			}
		}
		time.Sleep(cfg.frameInterval)
	}

	// One debounced text round-trip at the end.
	if strings.TrimSpace(cfg.text) != "" {
		sentAt := time.Now()
		if err := send(protocol.ClientText{
			Type:      protocol.TypeClientText,
			SessionID: sessionID,
			Text:      cfg.text,
			TSMs:      sentAt.UnixMilli(),
		}); err != nil {
			return fmt.Errorf("push text: %w", err)
		}
		select {
		case arrivedAt := <-updates:
			if cfg.verbose {
				fmt.Printf("text round trip: %s\n", arrivedAt.Sub(sentAt).Round(time.Millisecond))
			}
		case <-time.After(cfg.updateTimeout):
			if cfg.verbose {
				fmt.Printf("text: no emotion update within %s\n", cfg.updateTimeout)
			}
		}
	}

	_ = send(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionStopCapture,
	})

	report(latencies, cfg.frames)
	return nil
}

func createSession(cfg options) (string, error) {
	body, _ := json.Marshal(createSessionRequest{UserID: cfg.userID})
	res, err := http.Post(cfg.baseURL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: status %d", res.StatusCode)
	}
	var created createSessionResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.SessionID == "" {
		return "", fmt.Errorf("create session: empty session_id")
	}
	return created.SessionID, nil
}

func websocketURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/v1/sessions/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readUpdates(conn *websocket.Conn, updates chan<- time.Time, verbose bool) {
	defer close(updates)
	for {
		var env struct {
			Type     string `json:"type"`
			Source   string `json:"source"`
			Dominant string `json:"dominant_emotion"`
			Code     string `json:"code"`
			Detail   string `json:"detail"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		switch protocol.MessageType(env.Type) {
		case protocol.TypeEmotionUpdate:
			if env.Source != "inference" {
				continue
			}
			if verbose {
				fmt.Printf("emotion: %s\n", env.Dominant)
			}
			select {
			case updates <- time.Now():
			default:
			}
		case protocol.TypeErrorEvent:
			fmt.Printf("server error %s: %s\n", env.Code, env.Detail)
		}
	}
}

// syntheticFrame builds a random payload with a JPEG magic prefix, enough
// for transport and size characteristics without a real camera.
func syntheticFrame(size int) string {
	buf := make([]byte, size)
	buf[0], buf[1], buf[2] = 0xFF, 0xD8, 0xFF
	rnd := rand.New(rand.NewSource(42))
	for i := 3; i < size; i++ {
		buf[i] = byte(rnd.Intn(256))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func report(latencies []time.Duration, attempted int) {
	if len(latencies) == 0 {
		fmt.Printf("no emotion updates observed for %d frames\n", attempted)
		return
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	pct := func(p float64) time.Duration {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx]
	}

	fmt.Printf("frames: %d attempted, %d answered\n", attempted, len(sorted))
	fmt.Printf("avg %s  p50 %s  p95 %s  max %s\n",
		(sum / time.Duration(len(sorted))).Round(time.Millisecond),
		pct(0.50).Round(time.Millisecond),
		pct(0.95).Round(time.Millisecond),
		sorted[len(sorted)-1].Round(time.Millisecond),
	)
}
