package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Push transports
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Config is the daemon configuration. Defaults are overlaid by the optional
// YAML file named in DUEL_CONFIG, then by environment variables.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Push struct {
		Transport     string        `yaml:"transport"`
		SocketURL     string        `yaml:"socket_url"`
		NATSURL       string        `yaml:"nats_url"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"push"`

	Player struct {
		AccessToken string `yaml:"access_token"`
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
	} `yaml:"player"`

	AutoPlay struct {
		Enabled       bool          `yaml:"enabled"`
		Interval      time.Duration `yaml:"interval"`
		CreateBet     int           `yaml:"create_bet"`
		CreateTimeout int           `yaml:"create_timeout"`
	} `yaml:"auto_play"`

	Status struct {
		Port int `yaml:"port"`
	} `yaml:"status"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration
func Default() *Config {
	var c Config
	c.API.BaseURL = "http://localhost:3000/api"
	c.API.Timeout = 30 * time.Second
	c.Push.Transport = TransportWebSocket
	c.Push.SubjectPrefix = "numduel"
	c.Push.ReconnectWait = 2 * time.Second
	c.AutoPlay.Interval = time.Second
	c.AutoPlay.CreateTimeout = 30
	c.Status.Port = 8090
	c.Log.Level = "info"
	c.Log.Format = "console"
	return &c
}

// Load reads .env (if present), the YAML file named by DUEL_CONFIG (if set)
// and finally the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	c := Default()
	if path := os.Getenv("DUEL_CONFIG"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("API_BASE_URL", c.API.BaseURL)
	c.API.Timeout = getEnvAsDuration("HTTP_TIMEOUT", c.API.Timeout)

	c.Push.Transport = strings.ToLower(getEnv("PUSH_TRANSPORT", c.Push.Transport))
	c.Push.SocketURL = getEnv("SOCKET_URL", c.Push.SocketURL)
	c.Push.NATSURL = getEnv("NATS_URL", c.Push.NATSURL)
	c.Push.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Push.SubjectPrefix)
	c.Push.ReconnectWait = getEnvAsDuration("RECONNECT_WAIT", c.Push.ReconnectWait)

	c.Player.AccessToken = getEnv("ACCESS_TOKEN", c.Player.AccessToken)
	c.Player.ID = getEnv("PLAYER_ID", c.Player.ID)
	c.Player.Name = getEnv("PLAYER_NAME", c.Player.Name)

	c.AutoPlay.Enabled = getEnvAsBool("AUTO_PLAY", c.AutoPlay.Enabled)
	c.AutoPlay.CreateBet = getEnvAsInt("AUTO_CREATE_BET", c.AutoPlay.CreateBet)
	c.AutoPlay.CreateTimeout = getEnvAsInt("AUTO_CREATE_TIMEOUT", c.AutoPlay.CreateTimeout)

	c.Status.Port = getEnvAsInt("STATUS_PORT", c.Status.Port)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// SocketURL returns the push URL, defaulting to the API origin.
func (c *Config) SocketURL() string {
	if c.Push.SocketURL != "" {
		return c.Push.SocketURL
	}
	return strings.TrimSuffix(strings.TrimSuffix(c.API.BaseURL, "/"), "/api")
}

// Validate checks the configuration for missing or conflicting values
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	switch c.Push.Transport {
	case TransportWebSocket:
	case TransportNATS:
		if c.Push.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PUSH_TRANSPORT %q", c.Push.Transport))
	}
	if c.AutoPlay.Enabled && c.Player.ID == "" {
		errs = append(errs, errors.New("PLAYER_ID is required for auto-play"))
	}
	if c.AutoPlay.CreateBet < 0 {
		errs = append(errs, errors.New("AUTO_CREATE_BET must not be negative"))
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		errs = append(errs, fmt.Errorf("STATUS_PORT %d out of range", c.Status.Port))
	}
	return errors.Join(errs...)
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
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer config value")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-boolean config value")
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or whole seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration config value")
	return defaultValue
}
