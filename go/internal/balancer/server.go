package balancer

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// UnavailableResponse is written to clients when no backend can take them.
const UnavailableResponse = "HTTP/1.0 503 Service Unavailable\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 20\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"No servers available"

const relayBufferSize = 32 << 10

// Config holds the relay settings.
type Config struct {
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration
	// AcceptRate caps new connections per second; zero is unlimited.
	AcceptRate float64
}

// DefaultConfig returns the stock relay settings.
func DefaultConfig() Config {
	return Config{
		DialTimeout:   5 * time.Second,
		ReadTimeout:   time.Second,
		IdleTimeout:   60 * time.Second,
		ShutdownGrace: 3 * time.Second,
	}
}

// Server accepts client connections and relays each one to a backend.
// It never looks at the bytes it moves.
type Server struct {
	pool    *Pool
	config  Config
	limiter *rate.Limiter
	dialer  net.Dialer

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}

	active   atomic.Int64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewServer creates a relay server over pool.
func NewServer(pool *Pool, config Config) *Server {
	s := &Server{
		pool:   pool,
		config: config,
		dialer: net.Dialer{Timeout: config.DialTimeout},
		conns:  make(map[net.Conn]struct{}),
	}
	if config.AcceptRate > 0 {
		burst := int(config.AcceptRate)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}
	return s
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Active   int       `json:"active"`
	Accepted uint64    `json:"accepted"`
	Rejected uint64    `json:"rejected"`
	Backends []Backend `json:"backends"`
}

// Stats returns relay counters and backend health.
func (s *Server) Stats() Stats {
	return Stats{
		Active:   int(s.active.Load()),
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Backends: s.pool.Snapshot(),
	}
}

// Serve accepts on ln until ctx is done. It then stops accepting, waits up to
// the shutdown grace for relays to finish, closes whatever is left and
// returns. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Strs("backends", s.pool.Addresses()).Msg("load balancer started")

	var serveErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			serveErr = err
			break
		}

		s.accepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}

	ln.Close()
	s.drain()
	return serveErr
}

func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("load balancer stopped")
		return
	case <-time.After(s.config.ShutdownGrace):
	}

	s.mu.Lock()
	n := len(s.conns)
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	log.Warn().Int("connections", n).Msg("shutdown grace expired, closed remaining connections")
	<-done
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}

func (s *Server) handle(ctx context.Context, client net.Conn) {
	s.track(client)
	defer s.untrack(client)

	if s.limiter != nil && !s.limiter.Allow() {
		s.reject(client, "accept rate exceeded")
		return
	}

	addr, err := s.pool.Next()
	if err != nil {
		s.reject(client, err.Error())
		return
	}

	backend, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Error().Err(err).Str("backend", addr).Msg("failed to connect to backend")
		s.reject(client, "backend dial failed")
		return
	}
	s.track(backend)
	defer s.untrack(backend)

	s.active.Add(1)
	defer s.active.Add(-1)

	log.Debug().
		Str("client", client.RemoteAddr().String()).
		Str("backend", addr).
		Msg("relaying connection")

	s.relay(ctx, client, backend)
}

func (s *Server) reject(client net.Conn, reason string) {
	s.rejected.Add(1)
	log.Warn().Str("client", client.RemoteAddr().String()).Str("reason", reason).Msg("rejecting connection")
	client.SetWriteDeadline(time.Now().Add(s.config.ReadTimeout))
	if _, err := client.Write([]byte(UnavailableResponse)); err != nil {
		log.Debug().Err(err).Msg("failed to write unavailable response")
	}
}

// relay copies both directions until either side closes, errors, the pair
// is idle for IdleTimeout, or ctx is done. Both ends are closed on return.
func (s *Server) relay(ctx context.Context, client, backend net.Conn) {
	var lastActive atomic.Int64
	lastActive.Store(time.Now().UnixNano())

	done := make(chan struct{}, 2)
	pipe := func(dst, src net.Conn) {
		defer func() { done <- struct{}{} }()
		buf := make([]byte, relayBufferSize)
		for {
			src.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
			n, err := src.Read(buf)
			if n > 0 {
				lastActive.Store(time.Now().UnixNano())
				dst.SetWriteDeadline(time.Now().Add(s.config.IdleTimeout))
				if _, werr := dst.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err == nil {
				continue
			}
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if time.Since(time.Unix(0, lastActive.Load())) >= s.config.IdleTimeout {
				return
			}
		}
	}

	go pipe(backend, client)
	go pipe(client, backend)

	<-done
	client.Close()
	backend.Close()
	<-done
}
