// ABOUTME: Tests for configuration loading
// ABOUTME: YAML parsing, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  token: my-token
permission:
  window: 5m
  auto_approve: false
voice:
  mode: vad
  sample_rate: 16000
  chunk_samples: 1920
  vad_sensitivity: 0.5
  auto_playback: true
  voice_id: nova
  silence_timeout: 1500ms
collab:
  base_url: https://collab.example.com
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://gw.example.com/ws", cfg.Gateway.Endpoint)
	assert.Equal(t, "my-token", cfg.Auth.Token)
	assert.Equal(t, 5*time.Minute, cfg.Permission.Window)
	assert.False(t, cfg.Permission.AutoApprove)
	assert.Equal(t, "vad", cfg.Voice.Mode)
	assert.Equal(t, 16000, cfg.Voice.SampleRate)
	assert.Equal(t, 1920, cfg.Voice.ChunkSamples)
	assert.Equal(t, 0.5, cfg.Voice.VadSensitivity)
	assert.True(t, cfg.Voice.AutoPlayback)
	assert.Equal(t, "nova", cfg.Voice.VoiceID)
	assert.Equal(t, 1500*time.Millisecond, cfg.Voice.SilenceTimeout)
	assert.Equal(t, "https://collab.example.com", cfg.Collab.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GW_TOKEN", "secret-from-env")

	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  token: ${TEST_GW_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Auth.Token)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  token: ${DEFINITELY_NOT_SET_ANYWHERE}
  pin: "1234"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.Token)
	assert.Equal(t, "1234", cfg.Auth.PIN)
}

func TestLoad_MissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
auth:
  token: my-token
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.endpoint")
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token or auth.pin")
}

func TestLoad_PINAlone(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  pin: "1234"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.Auth.PIN)
}

func TestLoad_InvalidSensitivity(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  token: tok
voice:
  vad_sensitivity: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vad_sensitivity")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: wss://gw.example.com/ws
auth:
  token: tok
permission:
  window: five minutes
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission.window")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "gateway: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}
