package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/colortap/go/internal/models"
)

const (
	MinRequiredPlayers = 2
	MaxRequiredPlayers = 10

	DefaultPath = "config.yaml"
)

// Config is the full process configuration shared by both binaries.
type Config struct {
	Game     GameConfig     `yaml:"game"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Events   EventsConfig   `yaml:"events"`
	Balancer BalancerConfig `yaml:"balancer"`
	Log      LogConfig      `yaml:"log"`
}

type GameConfig struct {
	RequiredPlayers        int           `yaml:"required_players"`
	MaxQuestions           int           `yaml:"max_questions"`
	QuestionDuration       time.Duration `yaml:"question_duration"`
	CountdownDuration      time.Duration `yaml:"countdown_duration"`
	TimesUpDuration        time.Duration `yaml:"times_up_duration"`
	RoundCompletedDuration time.Duration `yaml:"round_completed_duration"`
	HeartbeatTimeout       time.Duration `yaml:"heartbeat_timeout"`
	SweepInterval          time.Duration `yaml:"sweep_interval"`
	RetainDepartedScores   bool          `yaml:"retain_departed_scores"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StreamInterval  time.Duration `yaml:"stream_interval"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver"`
	SessionID string `yaml:"session_id"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
}

type BalancerConfig struct {
	ListenPort    int           `yaml:"listen_port"`
	Backends      []string      `yaml:"backends"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	AcceptRate    float64       `yaml:"accept_rate"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() Config {
	game := models.DefaultSettings()
	return Config{
		Game: GameConfig{
			RequiredPlayers:        game.RequiredPlayers,
			MaxQuestions:           game.MaxQuestions,
			QuestionDuration:       game.QuestionDuration,
			CountdownDuration:      game.CountdownDuration,
			TimesUpDuration:        game.TimesUpDuration,
			RoundCompletedDuration: game.RoundCompletedDuration,
			HeartbeatTimeout:       game.HeartbeatTimeout,
			SweepInterval:          5 * time.Second,
		},
		Server: ServerConfig{
			Port:            8889,
			ShutdownTimeout: 3 * time.Second,
			StreamInterval:  250 * time.Millisecond,
			RateLimit:       50,
			RateLimitBurst:  100,
		},
		Store: StoreConfig{
			Driver:    "memory",
			SessionID: "default",
		},
		Balancer: BalancerConfig{
			ListenPort:    8888,
			Backends:      []string{"127.0.0.1:8889", "127.0.0.1:8890", "127.0.0.1:8891"},
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  2 * time.Second,
			IdleTimeout:   60 * time.Second,
			ReadTimeout:   time.Second,
			ShutdownGrace: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Game.RequiredPlayers = getEnvAsInt("REQUIRED_PLAYERS", c.Game.RequiredPlayers)
	c.Game.MaxQuestions = getEnvAsInt("MAX_QUESTIONS", c.Game.MaxQuestions)
	c.Game.QuestionDuration = getEnvAsDuration("QUESTION_DURATION", c.Game.QuestionDuration)
	c.Game.CountdownDuration = getEnvAsDuration("COUNTDOWN_DURATION", c.Game.CountdownDuration)
	c.Game.TimesUpDuration = getEnvAsDuration("TIMES_UP_DURATION", c.Game.TimesUpDuration)
	c.Game.RoundCompletedDuration = getEnvAsDuration("ROUND_COMPLETED_DURATION", c.Game.RoundCompletedDuration)
	c.Game.HeartbeatTimeout = getEnvAsDuration("HEARTBEAT_TIMEOUT", c.Game.HeartbeatTimeout)
	c.Game.SweepInterval = getEnvAsDuration("SWEEP_INTERVAL", c.Game.SweepInterval)
	c.Game.RetainDepartedScores = getEnvAsBool("RETAIN_DEPARTED_SCORES", c.Game.RetainDepartedScores)

	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.StreamInterval = getEnvAsDuration("STREAM_INTERVAL", c.Server.StreamInterval)
	c.Server.RateLimit = getEnvAsFloat("RATE_LIMIT", c.Server.RateLimit)
	c.Server.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", c.Server.RateLimitBurst)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.SessionID = getEnv("SESSION_ID", c.Store.SessionID)
	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)

	c.Balancer.ListenPort = getEnvAsInt("LB_PORT", c.Balancer.ListenPort)
	if v := getEnv("LB_BACKENDS", ""); v != "" {
		c.Balancer.Backends = splitList(v)
	}
	c.Balancer.ProbeInterval = getEnvAsDuration("LB_PROBE_INTERVAL", c.Balancer.ProbeInterval)
	c.Balancer.ProbeTimeout = getEnvAsDuration("LB_PROBE_TIMEOUT", c.Balancer.ProbeTimeout)
	c.Balancer.IdleTimeout = getEnvAsDuration("LB_IDLE_TIMEOUT", c.Balancer.IdleTimeout)
	c.Balancer.ReadTimeout = getEnvAsDuration("LB_READ_TIMEOUT", c.Balancer.ReadTimeout)
	c.Balancer.AcceptRate = getEnvAsFloat("LB_ACCEPT_RATE", c.Balancer.AcceptRate)
	c.Balancer.ShutdownGrace = getEnvAsDuration("LB_SHUTDOWN_GRACE", c.Balancer.ShutdownGrace)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate clamps the player count and rejects unusable values.
func (c *Config) Validate() error {
	if c.Game.RequiredPlayers < MinRequiredPlayers {
		c.Game.RequiredPlayers = MinRequiredPlayers
	}
	if c.Game.RequiredPlayers > MaxRequiredPlayers {
		c.Game.RequiredPlayers = MaxRequiredPlayers
	}

	if c.Game.MaxQuestions < 1 {
		return fmt.Errorf("max_questions must be at least 1, got %d", c.Game.MaxQuestions)
	}
	if c.Game.QuestionDuration <= 0 {
		return fmt.Errorf("question_duration must be positive, got %s", c.Game.QuestionDuration)
	}
	if c.Game.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat_timeout must be positive, got %s", c.Game.HeartbeatTimeout)
	}
	if c.Game.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.Game.SweepInterval)
	}
	for name, d := range map[string]time.Duration{
		"countdown_duration":       c.Game.CountdownDuration,
		"times_up_duration":        c.Game.TimesUpDuration,
		"round_completed_duration": c.Game.RoundCompletedDuration,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.SessionID == "" {
		return errors.New("session_id must not be empty")
	}

	if len(c.Balancer.Backends) == 0 {
		return errors.New("balancer needs at least one backend")
	}
	if c.Balancer.ProbeInterval <= 0 || c.Balancer.ProbeTimeout <= 0 {
		return errors.New("balancer probe interval and timeout must be positive")
	}
	return nil
}

// Settings returns the game settings for the engine.
func (c *Config) Settings() models.Settings {
	return models.Settings{
		RequiredPlayers:        c.Game.RequiredPlayers,
		MaxQuestions:           c.Game.MaxQuestions,
		QuestionDuration:       c.Game.QuestionDuration,
		CountdownDuration:      c.Game.CountdownDuration,
		TimesUpDuration:        c.Game.TimesUpDuration,
		RoundCompletedDuration: c.Game.RoundCompletedDuration,
		HeartbeatTimeout:       c.Game.HeartbeatTimeout,
		RetainDepartedScores:   c.Game.RetainDepartedScores,
	}
}

// Path returns CONFIG_PATH or the default config file name.
func Path() string {
	return getEnv("CONFIG_PATH", DefaultPath)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("10").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
