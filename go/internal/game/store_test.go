package game

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/colortap/go/internal/models"
)

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("default", testEpoch)
	assert.Equal(t, StoreModeMemory, store.Mode())

	s, err := store.Update(ctx, func(s *models.Session) error {
		s.Players["a"] = &models.Player{ID: "a", Score: 10}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Generation)

	// Returned sessions are copies.
	s.Players["a"].Score = 999
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Players["a"].Score)
}

func TestMemoryStore_FailedUpdateDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("default", testEpoch)
	boom := errors.New("boom")

	_, err := store.Update(ctx, func(s *models.Session) error {
		s.Players["a"] = &models.Player{ID: "a"}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Players)
	assert.Zero(t, loaded.Generation)
}

func TestFallbackStore_Mode(t *testing.T) {
	assert.Equal(t, StoreModeFallback, NewFallbackStore("default", testEpoch).Mode())
}
