package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemoryGuard(time.Minute)
	g.now = func() time.Time { return now }

	first, err := g.Claim(ctx, "saweria:1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := g.Claim(ctx, "saweria:1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := g.Claim(ctx, "bagibagi:1")
	require.NoError(t, err)
	assert.True(t, other)

	now = now.Add(2 * time.Minute)
	expired, err := g.Claim(ctx, "saweria:1")
	require.NoError(t, err)
	assert.True(t, expired, "claims expire after the ttl")

	require.NoError(t, g.Release(ctx, "saweria:1"))
	released, err := g.Claim(ctx, "saweria:1")
	require.NoError(t, err)
	assert.True(t, released)
}
