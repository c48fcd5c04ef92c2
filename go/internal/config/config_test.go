package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Game.RequiredPlayers)
	assert.Equal(t, 10, cfg.Game.MaxQuestions)
	assert.Equal(t, 10*time.Second, cfg.Game.QuestionDuration)
	assert.Equal(t, 3*time.Second, cfg.Game.CountdownDuration)
	assert.Equal(t, 8889, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 8888, cfg.Balancer.ListenPort)
	assert.Len(t, cfg.Balancer.Backends, 3)
	assert.Equal(t, 5*time.Second, cfg.Balancer.ProbeInterval)
	assert.Equal(t, 2*time.Second, cfg.Balancer.ProbeTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game:
  required_players: 4
  max_questions: 5
  question_duration: 15s
store:
  driver: postgres
balancer:
  backends: ["10.0.0.1:9000"]
`), 0o600))

	t.Setenv("MAX_QUESTIONS", "7")
	t.Setenv("COUNTDOWN_DURATION", "1.5")
	t.Setenv("TIMES_UP_DURATION", "500ms")
	t.Setenv("RETAIN_DEPARTED_SCORES", "true")
	t.Setenv("LB_BACKENDS", "a:1, b:2,,c:3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Game.RequiredPlayers)
	assert.Equal(t, 7, cfg.Game.MaxQuestions)
	assert.Equal(t, 15*time.Second, cfg.Game.QuestionDuration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Game.CountdownDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.TimesUpDuration)
	assert.True(t, cfg.Game.RetainDepartedScores)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, cfg.Balancer.Backends)

	settings := cfg.Settings()
	assert.Equal(t, 4, settings.RequiredPlayers)
	assert.True(t, settings.RetainDepartedScores)
}

func TestValidate_ClampsRequiredPlayers(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 2}, {1, 2}, {2, 2}, {6, 6}, {10, 10}, {11, 10},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Game.RequiredPlayers = tt.in
		require.NoError(t, cfg.Validate())
		assert.Equal(t, tt.want, cfg.Game.RequiredPlayers, "in=%d", tt.in)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no questions", func(c *Config) { c.Game.MaxQuestions = 0 }},
		{"zero question duration", func(c *Config) { c.Game.QuestionDuration = 0 }},
		{"negative countdown", func(c *Config) { c.Game.CountdownDuration = -time.Second }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"no backends", func(c *Config) { c.Balancer.Backends = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game: [not a map"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupLogging(LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	SetupLogging(LogConfig{Level: "bogus", Format: "console"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
