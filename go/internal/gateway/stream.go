package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamConfig holds configuration for websocket status streams
type StreamConfig struct {
	Interval        time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultStreamConfig returns default websocket configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Interval:        250 * time.Millisecond,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// stream upgrades to a websocket and pushes the caller's status every
// interval. Each push counts as a heartbeat, like polling /status.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Stream
	playerID := r.URL.Query().Get("player_id")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	h.conns.streamOpened()
	connID := uuid.New().String()
	log.Info().
		Str("connection_id", connID).
		Str("player_id", playerID).
		Msg("WebSocket stream established")

	done := make(chan struct{})
	go readPump(conn, cfg, done)

	defer func() {
		h.conns.streamClosed()
		conn.Close()
		log.Info().Str("connection_id", connID).Msg("WebSocket stream closed")
	}()

	push := time.NewTicker(cfg.Interval)
	defer push.Stop()
	ping := time.NewTicker(cfg.PingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		if ctx.Err() != nil {
			return
		}
		st, err := h.engine.Status(ctx, playerID)
		if err != nil {
			log.Error().Err(err).Str("connection_id", connID).Msg("failed to read status for stream")
		} else {
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteJSON(st); err != nil {
				log.Debug().Err(err).Str("connection_id", connID).Msg("failed to write status to WebSocket")
				return
			}
		}

		select {
		case <-done:
			return
		case <-h.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", connID).Msg("failed to send ping")
				return
			}
		case <-push.C:
		}
	}
}

// readPump consumes client frames so pongs and closes are processed, and
// closes done when the client goes away.
func readPump(conn *websocket.Conn, cfg StreamConfig, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("unexpected WebSocket close error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
