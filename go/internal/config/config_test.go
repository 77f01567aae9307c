package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DUEL_CONFIG", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/api", c.API.BaseURL)
	assert.Equal(t, TransportWebSocket, c.Push.Transport)
	assert.Equal(t, "http://localhost:3000", c.SocketURL())
	assert.Equal(t, 2*time.Second, c.Push.ReconnectWait)
	assert.False(t, c.AutoPlay.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://duel.example.com/api
  timeout: 5s
push:
  transport: nats
  nats_url: nats://broker:4222
  reconnect_wait: 3s
player:
  id: file-player
auto_play:
  enabled: true
  create_bet: 20
status:
  port: 9100
`), 0o600))

	t.Setenv("DUEL_CONFIG", path)
	t.Setenv("PLAYER_ID", "env-player")
	t.Setenv("RECONNECT_WAIT", "7")
	t.Setenv("AUTO_CREATE_TIMEOUT", "45")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://duel.example.com/api", c.API.BaseURL)
	assert.Equal(t, 5*time.Second, c.API.Timeout)
	assert.Equal(t, TransportNATS, c.Push.Transport)
	assert.Equal(t, "nats://broker:4222", c.Push.NATSURL)
	assert.Equal(t, "env-player", c.Player.ID, "env wins over file")
	assert.Equal(t, 7*time.Second, c.Push.ReconnectWait)
	assert.True(t, c.AutoPlay.Enabled)
	assert.Equal(t, 20, c.AutoPlay.CreateBet)
	assert.Equal(t, 45, c.AutoPlay.CreateTimeout)
	assert.Equal(t, 9100, c.Status.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("DUEL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: "API_BASE_URL"},
		{name: "unknown transport", mutate: func(c *Config) { c.Push.Transport = "carrier-pigeon" }, wantErr: "PUSH_TRANSPORT"},
		{name: "nats without url", mutate: func(c *Config) { c.Push.Transport = TransportNATS }, wantErr: "NATS_URL"},
		{name: "auto-play without player", mutate: func(c *Config) { c.AutoPlay.Enabled = true }, wantErr: "PLAYER_ID"},
		{name: "port out of range", mutate: func(c *Config) { c.Status.Port = 70000 }, wantErr: "STATUS_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, getEnvAsDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "12")
	assert.Equal(t, 12*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
}
