package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/tool"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	os.Unsetenv("LLM_PROVIDER")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, 0.0, cfg.Model.Temperature)
	assert.Equal(t, 6, cfg.Model.MaxRetries)
	assert.Equal(t, 50*time.Second, cfg.Model.RequestTimeout)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.Equal(t, 15, cfg.WorkerSteps)
	assert.Equal(t, 55*time.Second, cfg.TurnDeadline)
	assert.Equal(t, 45*time.Second, cfg.WorkerTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("TURN_DEADLINE", "30")
	t.Setenv("WORKER_TIMEOUT", "1500ms")
	t.Setenv("HISTORY_LIMIT", "4")
	t.Setenv("MODEL_TEMPERATURE", "0.3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "ak-test", cfg.Model.APIKey)
	assert.NotEmpty(t, cfg.Model.Name)
	assert.Equal(t, 30*time.Second, cfg.TurnDeadline)
	assert.Equal(t, 1500*time.Millisecond, cfg.WorkerTimeout)
	assert.Equal(t, 4, cfg.HistoryLimit)
	assert.InDelta(t, 0.3, cfg.Model.Temperature, 1e-9)
}

func TestValidate_IsConfigurationFailure(t *testing.T) {
	cfg := &Config{Port: "8080", DBPath: "x.db", Model: ModelConfig{Provider: "llama"}, MaxSteps: 0}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
	assert.ErrorContains(t, err, `LLM_PROVIDER "llama" is not supported`)
	assert.ErrorContains(t, err, "MAX_STEPS must be > 0")
}

func TestLoad_MissingKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "OPENAI_API_KEY is required")
}

func TestDecodeServers(t *testing.T) {
	file, err := DecodeServers([]byte(`
servers:
  - name: disaster
    command: python
    args: [mcp_servers/public_disaster_mcp_server.py]
    env:
      SERVICE_KEY: secret
  - name: gps
    transport: sse
    url: http://localhost:9000/sse
allow_list:
  disaster: [getForestFires]
`))
	require.NoError(t, err)

	require.Len(t, file.Servers, 2)
	assert.Equal(t, "python", file.Servers[0].Command)
	assert.Equal(t, "secret", file.Servers[0].Env["SERVICE_KEY"])
	assert.Equal(t, "http://localhost:9000/sse", file.Servers[1].URL)

	allow := file.Allow()
	assert.Equal(t, []tool.Name{tool.GetForestFires}, allow[core.RoleDisaster])
	assert.Equal(t, tool.DefaultAllowList[core.RoleNews], allow[core.RoleNews])
	assert.Len(t, tool.DefaultAllowList[core.RoleDisaster], 3)
}

func TestDecodeServers_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "servers:\n  - name: a\n    command: x\n    cmd: y\n",
		"empty":         "",
		"missing cmd":   "servers:\n  - name: a\n",
		"duplicate":     "servers:\n  - name: a\n    command: x\n  - name: a\n    command: y\n",
		"unknown role":  "servers:\n  - name: a\n    command: x\nallow_list:\n  weather: [a]\n",
		"bad transport": "servers:\n  - name: a\n    transport: grpc\n",
		"sse needs url": "servers:\n  - name: a\n    transport: sse\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeServers([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadServers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers:\n  - name: news\n    command: ./news\n"), 0o600))

	file, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, "news", file.Servers[0].Name)

	_, err = LoadServers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
}
