package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/attune-app/attune/internal/config"
	"github.com/attune-app/attune/internal/journal"
	"github.com/attune-app/attune/internal/observability"
	"github.com/attune-app/attune/internal/policy"
	"github.com/attune-app/attune/internal/protocol"
	"github.com/attune-app/attune/internal/reccache"
	"github.com/attune-app/attune/internal/session"
)

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	journal      journal.Store
	cache        reccache.Store
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, journalStore journal.Store, cache reccache.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		journal:      journalStore,
		cache:        cache,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin. This prevents other websites from driving the
				// user's camera session if Attune is ever exposed beyond
				// localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/sessions/ws", s.handleSessionWS)
	r.Post("/v1/checkins", s.handleSaveCheckin)
	r.Get("/v1/checkins", s.handleRecentCheckins)
	r.Get("/v1/recommendations/latest", s.handleLatestRecommendations)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"inference_url": s.cfg.InferenceBaseURL,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(req.UserID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:        sess.ID,
		UserID:           sess.UserID,
		Status:           sess.Status,
		DetectionEnabled: sess.DetectionEnabled,
		StartedAt:        sess.StartedAt,
		LastActivityAt:   sess.LastActivityAt,
		InactivityTTLMS:  s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSaveCheckin(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "journal store not configured")
		return
	}

	var entry journal.Entry
	if err := decodeJSON(r, &entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(entry.TextContent) == "" {
		respondError(w, http.StatusBadRequest, "empty_entry", "text_content is required")
		return
	}
	if strings.TrimSpace(entry.UserID) == "" {
		entry.UserID = "anonymous"
	}

	// Journal text is the most sensitive thing this service touches.
	// Mask high-risk PII before it reaches a durable store.
	redacted, changed := policy.RedactPII(entry.TextContent)
	entry.TextContent = redacted
	entry.PIIRedacted = changed

	saved, err := s.journal.SaveEntry(r.Context(), entry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	s.metrics.CheckinsSaved.WithLabelValues(saved.EntryType).Inc()
	respondJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleRecentCheckins(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "journal store not configured")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			limit = n
		}
	}

	entries, err := s.journal.RecentEntries(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "recommendation cache not configured")
		return
	}

	entry, err := s.cache.Read(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	if entry == nil {
		respondJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"available":       true,
		"emotion":         entry.Emotion,
		"confidence":      entry.Confidence,
		"recommendations": entry.Recommendations,
		"timestamp":       entry.Timestamp,
	})
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if outbound queue is saturated.
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t), "received").Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > 1000 {
		return 0, errors.New("limit out of range")
	}
	return n, nil
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientFrame:
		return m.Type, true
	case protocol.ClientText:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.EmotionUpdate:
		return m.Type, true
	case protocol.CaptureState:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
