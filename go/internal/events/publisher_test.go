package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	messages [][]byte
	err      error
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subj)
	c.messages = append(c.messages, data)
	return nil
}

func TestNATSPublisher_Envelope(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "", "abcd1234")
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{
		Type:      PlayerJoined,
		SessionID: "default",
		At:        at,
		Payload:   PlayerJoinedPayload{PlayerID: "alice", PlayerCount: 1},
	})
	require.NoError(t, err)
	require.Len(t, conn.messages, 1)
	assert.Equal(t, "colortap.events.player_joined", conn.subjects[0])

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.messages[0], &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "player_joined", env.EventType)
	assert.Equal(t, "default", env.SessionID)
	assert.Equal(t, "abcd1234", env.InstanceID)
	assert.True(t, at.Equal(env.Timestamp))

	var payload PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "alice", payload.PlayerID)
	assert.Equal(t, 1, payload.PlayerCount)
}

func TestNATSPublisher_CustomPrefix(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{}, "test.events", "")
	assert.Equal(t, "test.events.phase_changed", p.Subject(PhaseChanged))
}

func TestNATSPublisher_ConnError(t *testing.T) {
	boom := errors.New("boom")
	p := NewNATSPublisher(&fakeConn{err: boom}, "", "")

	err := p.Publish(context.Background(), Event{Type: SessionReset, Payload: SessionResetPayload{Reason: "manual"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: PlayerLeft}))
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), Event{Type: PlayerLeft}))
}
