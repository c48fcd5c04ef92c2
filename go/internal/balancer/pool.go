package balancer

import (
	"errors"
	"sync"
	"time"
)

// ErrNoHealthyBackend is returned when every backend failed its last probe.
var ErrNoHealthyBackend = errors.New("no healthy backend")

// Backend is one upstream game server.
type Backend struct {
	Address      string    `json:"address"`
	Healthy      bool      `json:"healthy"`
	LastProbedAt time.Time `json:"last_probed_at"`
}

// Pool is the static backend list with round-robin selection over the
// currently healthy members.
type Pool struct {
	mu       sync.Mutex
	backends []*Backend
	index    int
}

// NewPool creates a pool for addrs. Backends start unhealthy until probed.
func NewPool(addrs []string) *Pool {
	p := &Pool{}
	for _, addr := range addrs {
		p.backends = append(p.backends, &Backend{Address: addr})
	}
	return p
}

// Next returns the address of the next healthy backend.
func (p *Pool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := make([]*Backend, 0, len(p.backends))
	for _, b := range p.backends {
		if b.Healthy {
			healthy = append(healthy, b)
		}
	}
	if len(healthy) == 0 {
		return "", ErrNoHealthyBackend
	}

	b := healthy[p.index%len(healthy)]
	p.index++
	return b.Address, nil
}

// SetHealth records a probe result and reports whether the flag changed.
func (p *Pool) SetHealth(addr string, healthy bool, at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.backends {
		if b.Address != addr {
			continue
		}
		changed := b.Healthy != healthy
		b.Healthy = healthy
		b.LastProbedAt = at
		return changed
	}
	return false
}

// Addresses returns every configured backend address in order.
func (p *Pool) Addresses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.backends))
	for i, b := range p.backends {
		out[i] = b.Address
	}
	return out
}

// Healthy returns the addresses of the healthy backends in order.
func (p *Pool) Healthy() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, b := range p.backends {
		if b.Healthy {
			out = append(out, b.Address)
		}
	}
	return out
}

// Snapshot returns a copy of every backend's state.
func (p *Pool) Snapshot() []Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Backend, len(p.backends))
	for i, b := range p.backends {
		out[i] = *b
	}
	return out
}
