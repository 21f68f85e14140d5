package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/attune-app/attune/internal/config"
	"github.com/attune-app/attune/internal/journal"
	"github.com/attune-app/attune/internal/observability"
	"github.com/attune-app/attune/internal/reccache"
	"github.com/attune-app/attune/internal/session"
)

func newTestServer(t *testing.T, name string) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		InferenceBaseURL:         "http://localhost:8000",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics("test_httpapi_" + name + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	srv := New(cfg, sessions, nil, journal.NewInMemoryStore(), reccache.NewInMemoryStore(), metrics)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestCreateAndEndSession(t *testing.T) {
	_, ts := newTestServer(t, "session")

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	res, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if created["status"] != string(session.StatusIdle) {
		t.Fatalf("status = %v, want %q", created["status"], session.StatusIdle)
	}

	endRes, err := http.Post(ts.URL+"/v1/sessions/"+sessionID+"/end", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestEndUnknownSession(t *testing.T) {
	_, ts := newTestServer(t, "unknown")

	res, err := http.Post(ts.URL+"/v1/sessions/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestSaveAndListCheckins(t *testing.T) {
	_, ts := newTestServer(t, "checkins")

	payload := map[string]any{
		"user_id":            "user-1",
		"text_content":       "slept badly but the standup went fine",
		"tags":               []string{"sleep", "work"},
		"emotion":            "calm",
		"emotion_confidence": 64.2,
	}
	body, _ := json.Marshal(payload)
	res, err := http.Post(ts.URL+"/v1/checkins", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("save checkin request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("save status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var saved journal.Entry
	if err := json.NewDecoder(res.Body).Decode(&saved); err != nil {
		t.Fatalf("decode saved entry: %v", err)
	}
	if saved.ID == "" || saved.EntryType != "text" {
		t.Fatalf("saved entry = %+v", saved)
	}

	listRes, err := http.Get(ts.URL + "/v1/checkins?user_id=user-1&limit=5")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	defer listRes.Body.Close()
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", listRes.StatusCode, http.StatusOK)
	}

	var listed struct {
		Entries []journal.Entry `json:"entries"`
	}
	if err := json.NewDecoder(listRes.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Entries) != 1 || listed.Entries[0].ID != saved.ID {
		t.Fatalf("listed entries = %+v", listed.Entries)
	}
}

func TestSaveCheckinRedactsPII(t *testing.T) {
	_, ts := newTestServer(t, "redact")

	body, _ := json.Marshal(map[string]string{
		"user_id":      "user-1",
		"text_content": "called the clinic, they said email sam@example.com",
	})
	res, err := http.Post(ts.URL+"/v1/checkins", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()

	var saved journal.Entry
	if err := json.NewDecoder(res.Body).Decode(&saved); err != nil {
		t.Fatalf("decode saved entry: %v", err)
	}
	if !saved.PIIRedacted {
		t.Fatalf("PIIRedacted = false, want true")
	}
	if strings.Contains(saved.TextContent, "sam@example.com") {
		t.Fatalf("email survived redaction: %q", saved.TextContent)
	}
}

func TestSaveCheckinRejectsEmptyText(t *testing.T) {
	_, ts := newTestServer(t, "emptycheckin")

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	res, err := http.Post(ts.URL+"/v1/checkins", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestLatestRecommendations(t *testing.T) {
	srv, ts := newTestServer(t, "recs")

	// Empty slot first.
	res, err := http.Get(ts.URL + "/v1/recommendations/latest")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	var empty map[string]any
	if err := json.NewDecoder(res.Body).Decode(&empty); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if empty["available"] != false {
		t.Fatalf("empty slot response = %+v", empty)
	}

	err = srv.cache.Write(context.Background(), reccache.Entry{
		Emotion:         "sad",
		Confidence:      71,
		Recommendations: json.RawMessage(`[{"title":"Take a short walk"}]`),
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("cache Write() error = %v", err)
	}

	res2, err := http.Get(ts.URL + "/v1/recommendations/latest")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res2.Body.Close()
	var filled map[string]any
	if err := json.NewDecoder(res2.Body).Decode(&filled); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if filled["available"] != true || filled["emotion"] != "sad" {
		t.Fatalf("filled slot response = %+v", filled)
	}
}

func TestPerfLatencyEndpoint(t *testing.T) {
	srv, ts := newTestServer(t, "perf")
	srv.metrics.ObserveStage("text_round_trip", 120*time.Millisecond)

	res, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := payload["stages"]; !ok {
		t.Fatalf("missing stages in response: %+v", payload)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, ts := newTestServer(t, "health")

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
