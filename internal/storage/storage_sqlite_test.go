//go:build cgo

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

func TestStore_PutGet(t *testing.T) {
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "tracks.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	_, ok, err := s.Get(ctx, "https://open.spotify.com/track/x")
	require.NoError(t, err)
	assert.False(t, ok)

	track := dance.TrackInfo{URL: "https://open.spotify.com/track/x", Title: "T", Artist: "A", Duration: 1234}
	require.NoError(t, s.Put(ctx, track))

	got, ok, err := s.Get(ctx, track.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, track, got)

	track.Title = "T2"
	require.NoError(t, s.Put(ctx, track), "second put upserts")
	got, _, err = s.Get(ctx, track.URL)
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Title)
}
