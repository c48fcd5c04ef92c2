package balancer

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DialFunc opens a connection, like (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Prober periodically checks each backend with a bare TCP connect.
type Prober struct {
	pool     *Pool
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	dial     DialFunc
}

// NewProber creates a prober for pool.
func NewProber(pool *Pool, clock clockwork.Clock, interval, timeout time.Duration) *Prober {
	return &Prober{
		pool:     pool,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		dial:     (&net.Dialer{}).DialContext,
	}
}

// ProbeOnce probes every backend concurrently, each bounded by the probe
// timeout, and updates the pool.
func (p *Prober) ProbeOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, addr := range p.pool.Addresses() {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			healthy := p.probe(ctx, addr)
			if ctx.Err() != nil {
				return
			}
			if p.pool.SetHealth(addr, healthy, p.clock.Now()) {
				if healthy {
					log.Info().Str("backend", addr).Msg("backend healthy")
				} else {
					log.Warn().Str("backend", addr).Msg("backend unhealthy")
				}
			}
		}(addr)
	}
	wg.Wait()
}

func (p *Prober) probe(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", addr)
	if err != nil {
		log.Debug().Err(err).Str("backend", addr).Msg("probe failed")
		return false
	}
	conn.Close()
	return true
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.ProbeOnce(ctx)
	log.Info().Strs("healthy", p.pool.Healthy()).Msg("initial health check complete")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.ProbeOnce(ctx)
		}
	}
}
