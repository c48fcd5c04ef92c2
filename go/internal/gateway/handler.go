package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colortap/go/internal/game"
)

const maxBodyBytes = 4 << 10

// Config holds the HTTP layer settings.
type Config struct {
	RequestTimeout time.Duration
	RateLimit      float64
	RateLimitBurst int
	Stream         StreamConfig
}

// DefaultConfig returns the stock HTTP settings.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		RateLimit:      50,
		RateLimitBurst: 100,
		Stream:         DefaultStreamConfig(),
	}
}

// Handler exposes the game engine over HTTP.
type Handler struct {
	engine *game.Engine
	conns  *ConnectionTracker
	config Config

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine *game.Engine, conns *ConnectionTracker, config Config) *Handler {
	if conns == nil {
		conns = &ConnectionTracker{}
	}
	return &Handler{
		engine:  engine,
		conns:   conns,
		config:  config,
		closing: make(chan struct{}),
	}
}

// CloseStreams tells every open websocket stream to close. Hijacked
// connections are not covered by http.Server.Shutdown.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Routes returns the router with all game endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(NewRateLimiter(h.config.RateLimit, h.config.RateLimitBurst).Middleware())

	r.Get("/health", h.health)
	r.Get("/ws", h.stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.config.RequestTimeout))
		r.Get("/status", h.status)
		r.Get("/question", h.question)
		r.Post("/join", h.join)
		r.Post("/answer", h.answer)
		r.Post("/reset", h.reset)
		r.Get("/stats", h.stats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type joinRequest struct {
	PlayerID       string `json:"player_id"`
	PlayerUsername string `json:"player_username"`
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := req.PlayerUsername
	if id == "" {
		id = req.PlayerID
	}

	res, err := h.engine.Join(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(r.Context(), r.URL.Query().Get("player_id"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) question(w http.ResponseWriter, r *http.Request) {
	q, err := h.engine.Question(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	var sub game.Submission
	if err := decodeBody(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sub.Answer == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	res, err := h.engine.SubmitAnswer(r.Context(), sub)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "reset",
		"message": "Game has been reset",
	})
}

// ServerStats is what the router and operators read from /stats.
type ServerStats struct {
	*game.Stats
	ActiveConnections int  `json:"active_connections"`
	ActiveStreams     int  `json:"active_streams"`
	LoadScore         int  `json:"load_score"`
	Healthy           bool `json:"healthy"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ServerStats{
			Stats:             &game.Stats{},
			ActiveConnections: h.conns.Active(),
		})
		return
	}
	active := h.conns.Active()
	writeJSON(w, http.StatusOK, ServerStats{
		Stats:             st,
		ActiveConnections: active,
		ActiveStreams:     h.conns.Streams(),
		LoadScore:         active + st.PlayerCount,
		Healthy:           true,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidPlayerID),
		errors.Is(err, game.ErrUnknownPlayer),
		errors.Is(err, game.ErrNoActiveQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("session store failure")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
