package gateway

import (
	"net"
	"net/http"
	"sync/atomic"
)

// ConnectionTracker counts open client connections for load reporting.
// Plain HTTP connections are tracked through http.Server.ConnState and
// websocket streams, which are hijacked, are tracked explicitly.
type ConnectionTracker struct {
	http    atomic.Int64
	streams atomic.Int64
}

// ConnState is installed as the server's ConnState hook.
func (t *ConnectionTracker) ConnState(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		t.http.Add(1)
	case http.StateHijacked, http.StateClosed:
		t.http.Add(-1)
	}
}

func (t *ConnectionTracker) streamOpened() { t.streams.Add(1) }
func (t *ConnectionTracker) streamClosed() { t.streams.Add(-1) }

// Active returns the number of open connections.
func (t *ConnectionTracker) Active() int {
	n := t.http.Load() + t.streams.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Streams returns the number of open websocket streams.
func (t *ConnectionTracker) Streams() int {
	return int(t.streams.Load())
}
