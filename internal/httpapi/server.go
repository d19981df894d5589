package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxterm/voxterm/internal/auth"
	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/detect"
	"github.com/voxterm/voxterm/internal/observability"
	"github.com/voxterm/voxterm/internal/session"
	"github.com/voxterm/voxterm/internal/settings"
	"github.com/voxterm/voxterm/internal/term"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	detector *detect.Detector
	store    settings.Store
	auth     *auth.Authenticator
	limiter  *auth.RateLimiter
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	bridges map[string]*bridge
}

func New(cfg config.Config, sessions *session.Manager, detector *detect.Detector, store settings.Store, authn *auth.Authenticator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		detector: detector,
		store:    store,
		auth:     authn,
		limiter:  auth.NewRateLimiter(cfg.RateLimit, time.Minute),
		metrics:  metrics,
		bridges:  make(map[string]*bridge),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so another site cannot drive the user's shell
				// if the service is ever exposed beyond localhost.
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
	r.Post("/v1/auth/token", s.handleMintToken)

	r.Group(func(pr chi.Router) {
		pr.Use(s.auth.Middleware(s.limiter))

		pr.Get("/v1/clis", s.handleListCLIs)
		pr.Get("/v1/terminal/backends", s.handleListBackends)

		pr.Post("/v1/sessions", s.handleCreateSession)
		pr.Post("/v1/sessions/{id}/end", s.handleEndSession)
		pr.Get("/v1/sessions/{id}/history", s.handleSessionHistory)
		pr.Post("/v1/sessions/{id}/triggers", s.handleAddTrigger)
		pr.Delete("/v1/sessions/{id}/triggers/{phrase}", s.handleRemoveTrigger)
		pr.Get("/v1/sessions/ws", s.handleSessionWS)

		pr.Get("/v1/settings", s.handleGetSettings)
		pr.Put("/v1/settings", s.handlePutSettings)
		pr.Get("/v1/commands", s.handleRecentCommands)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"auth_enabled": s.auth.Enabled(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

type mintTokenRequest struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

type mintTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.limiter.Allow("token:" + r.RemoteAddr) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many token requests")
		return
	}
	if !s.auth.CheckAPIKey(req.APIKey) {
		respondError(w, http.StatusUnauthorized, "invalid_api_key", "api key rejected")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	token, expiry, err := s.auth.MintToken(req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, mintTokenResponse{Token: token, ExpiresAt: expiry})
}

func (s *Server) handleListCLIs(w http.ResponseWriter, r *http.Request) {
	detected := s.detector.DetectAll(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"detected": detected,
		"default":  s.cfg.DefaultCLI,
	})
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"backends": term.ListAvailableBackends(),
		"default":  s.cfg.TerminalBackend,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if id := auth.UserID(r.Context()); id != "" {
		req.UserID = id
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.CLI) == "" {
		req.CLI = s.cfg.DefaultCLI
	}
	if strings.TrimSpace(req.Backend) == "" {
		req.Backend = s.cfg.TerminalBackend
	}

	sess := s.sessions.Create(req.UserID, req.CLI, req.Backend)
	s.applyUserSettings(r.Context(), sess)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		CLI:             sess.CLI,
		Backend:         sess.Backend,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

// applyUserSettings layers persisted preferences onto a fresh session's
// engine: silence threshold and custom triggers survive restarts.
func (s *Server) applyUserSettings(ctx context.Context, sess *session.Session) {
	rt, err := s.sessions.Runtime(sess.ID)
	if err != nil {
		return
	}
	rt.Engine.SetSilenceThreshold(s.cfg.SilenceThreshold)
	rt.Engine.SetLongestMatch(s.cfg.LongestMatch)

	us, err := s.store.LoadSettings(ctx, sess.UserID)
	if err != nil {
		return
	}
	if us.SilenceThresholdMS > 0 {
		rt.Engine.SetSilenceThreshold(time.Duration(us.SilenceThresholdMS) * time.Millisecond)
	}
	for phrase, action := range us.CustomTriggers {
		rt.Engine.AddTrigger(phrase, action)
	}
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	s.persistSessionSettings(r.Context(), id)
	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.dropBridge(id)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

// persistSessionSettings snapshots the engine's custom triggers so they can
// be re-applied to the user's next session.
func (s *Server) persistSessionSettings(ctx context.Context, sessionID string) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return
	}
	rt, err := s.sessions.Runtime(sessionID)
	if err != nil {
		return
	}
	us, err := s.store.LoadSettings(ctx, sess.UserID)
	if err != nil {
		us = settings.UserSettings{UserID: sess.UserID}
	}
	us.SelectedCLI = sess.CLI
	us.SelectedBackend = sess.Backend
	us.SilenceThresholdMS = rt.Engine.SilenceThreshold().Milliseconds()
	us.CustomTriggers = rt.Engine.CustomTriggers()
	us.UpdatedAt = time.Now().UTC()
	_ = s.store.SaveSettings(ctx, us)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, err := s.sessions.Runtime(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"commands":   rt.Engine.History(limit),
	})
}

type addTriggerRequest struct {
	Phrase string `json:"phrase"`
	Action string `json:"action"`
}

func (s *Server) handleAddTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, err := s.sessions.Runtime(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	var req addTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Phrase) == "" || strings.TrimSpace(req.Action) == "" {
		respondError(w, http.StatusBadRequest, "invalid_trigger", "phrase and action are required")
		return
	}

	rt.Engine.AddTrigger(req.Phrase, req.Action)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"triggers":   rt.Engine.CustomTriggers(),
	})
}

func (s *Server) handleRemoveTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, err := s.sessions.Runtime(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	phrase, err := url.PathUnescape(chi.URLParam(r, "phrase"))
	if err != nil || strings.TrimSpace(phrase) == "" {
		respondError(w, http.StatusBadRequest, "invalid_trigger", "phrase is required")
		return
	}

	rt.Engine.RemoveTrigger(phrase)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"triggers":   rt.Engine.CustomTriggers(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	us, err := s.store.LoadSettings(r.Context(), userID)
	if errors.Is(err, settings.ErrNotFound) {
		respondJSON(w, http.StatusOK, settings.UserSettings{UserID: userID})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "settings_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, us)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var us settings.UserSettings
	if err := decodeJSON(r, &us); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	us.UserID = requestUserID(r)
	us.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSettings(r.Context(), us); err != nil {
		respondError(w, http.StatusInternalServerError, "settings_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, us)
}

func (s *Server) handleRecentCommands(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.store.RecentCommands(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"commands": entries,
	})
}

// requestUserID prefers the authenticated subject, then the user_id query
// parameter, then the anonymous default.
func requestUserID(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return "anonymous"
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
