package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Game.RoundDurationSeconds)
	assert.Equal(t, 6, cfg.Game.KeysPerRound)
	assert.Equal(t, 180000, cfg.Music.DefaultTrackDurationMS)
	assert.Equal(t, 3000, cfg.Music.TrackSpacingMS)
	assert.Equal(t, "spotify", cfg.Metadata.Provider)
	require.Len(t, cfg.Areas, 1)
	assert.Equal(t, "dance-floor", cfg.Areas[0].ID)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := writeYAML(t, `
game:
  round_duration_seconds: 8
music:
  track_spacing_ms: 0
areas:
  - id: floor
    x: 3
    y: 4
    width: 6
    height: 2
  - id: stage
    width: 1
    height: 1
`)
	t.Setenv("DANCE_GAME_KEYS_PER_ROUND", "4")
	t.Setenv("DANCE_SPOTIFY_CLIENT_ID", "abc")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Game.RoundDurationSeconds)
	assert.Equal(t, 4, cfg.Game.KeysPerRound)
	assert.Zero(t, cfg.Music.TrackSpacingMS)
	assert.Equal(t, "abc", cfg.Spotify.ClientID)
	assert.Equal(t, []Area{
		{ID: "floor", X: 3, Y: 4, Width: 6, Height: 2},
		{ID: "stage", Width: 1, Height: 1},
	}, cfg.Areas)
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	dir := writeYAML(t, `
game:
  round_duration_seconds: 0
metadata:
  provider: napster
areas:
  - id: floor
  - id: floor
    width: 2
    height: 2
`)
	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "round_duration_seconds")
	assert.Contains(t, err.Error(), "napster")
	assert.Contains(t, err.Error(), `area "floor" is missing width/height`)
	assert.Contains(t, err.Error(), `duplicate area id "floor"`)
}

func TestValidate_DatabaseNeedsDSN(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	cfg.Database.Driver = "sqlite"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Database.DSN = "file::memory:"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}
