package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]string{"b1", "b2", "b3"})
	now := time.Now()
	for _, b := range []string{"b1", "b2", "b3"} {
		assert.True(t, p.SetHealth(b, true, now))
	}

	var got []string
	for i := 0; i < 6; i++ {
		addr, err := p.Next()
		require.NoError(t, err)
		got = append(got, addr)
	}
	assert.Equal(t, []string{"b1", "b2", "b3", "b1", "b2", "b3"}, got)

	assert.True(t, p.SetHealth("b2", false, now))
	got = nil
	for i := 0; i < 3; i++ {
		addr, err := p.Next()
		require.NoError(t, err)
		got = append(got, addr)
	}
	assert.Equal(t, []string{"b1", "b3", "b1"}, got)
}

func TestPool_NoHealthyBackend(t *testing.T) {
	p := NewPool([]string{"b1", "b2"})
	_, err := p.Next()
	assert.ErrorIs(t, err, ErrNoHealthyBackend)

	p.SetHealth("b1", true, time.Now())
	p.SetHealth("b1", false, time.Now())
	_, err = p.Next()
	assert.ErrorIs(t, err, ErrNoHealthyBackend)
}

func TestPool_SetHealth(t *testing.T) {
	p := NewPool([]string{"b1"})
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, p.SetHealth("b1", false, at))
	assert.True(t, p.SetHealth("b1", true, at))
	assert.False(t, p.SetHealth("b1", true, at))
	assert.False(t, p.SetHealth("unknown", true, at))

	snap := p.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Healthy)
	assert.Equal(t, at, snap[0].LastProbedAt)
	assert.Equal(t, []string{"b1"}, p.Healthy())
}
