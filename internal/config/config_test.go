package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/internal/notify"
	"github.com/chartgenie/chartgenie/pkg/models"
)

func clearProviderEnv(t *testing.T) {
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "local", c.Storage.Backend)
	assert.Equal(t, 20, c.Conversations.MaxTurns)
	assert.Equal(t, 20*time.Second, c.Query.ReasoningTimeout)
	assert.Equal(t, 100, c.Analysis.PreviewRows)
	assert.Equal(t, 0.8, c.Schema.NumericRatio)
	assert.Equal(t, 4, c.Charts.MaxCharts)
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearProviderEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "chartgenie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
storage:
  backend: local
  compress: false
query:
  reasoning_timeout: 5s
providers:
  - name: primary
    kind: groq
    model: llama-3.3-70b-versatile
    api_key: gsk-test
  - name: backup
    kind: anthropic
    model: claude-3-5-haiku-latest
    api_key: sk-ant-test
`), 0o644))

	t.Setenv("CHARTGENIE_PORT", "7070")
	t.Setenv("CHARTGENIE_API_KEYS", "k1,k2")

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, c.Port, "env overrides file")
	assert.False(t, c.Storage.Compress)
	assert.Equal(t, 5*time.Second, c.Query.ReasoningTimeout)
	assert.Equal(t, []string{"k1", "k2"}, c.APIKeys)
	require.Len(t, c.Providers, 2)
	assert.Equal(t, models.ProviderGroq, c.Providers[0].Kind)
	assert.Equal(t, "gsk-test", c.Providers[0].APIKey)
	assert.Equal(t, "backup", c.Providers[1].Name)
}

func TestLoad_ProvidersFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-env")
	t.Setenv("OLLAMA_HOST", "http://127.0.0.1:11434/")

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8080\n"), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, c.Providers, 2)
	assert.Equal(t, "groq", c.Providers[0].Name)
	assert.Equal(t, "http://127.0.0.1:11434/v1", c.Providers[1].Endpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.Validate())

	c.Storage.Backend = "s3"
	assert.Error(t, c.Validate(), "s3 needs a bucket")
	c.Storage.S3.Bucket = "datasets"
	assert.NoError(t, c.Validate())

	c.Storage.Backend = "ftp"
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Providers = []models.Provider{{Name: "x", Kind: "mystery"}}
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Notify.Webhooks = []notify.Webhook{{URL: "ftp://hooks"}}
	assert.Error(t, c.Validate())
	c.Notify.Webhooks[0].URL = "https://hooks.example.com/chartgenie"
	assert.NoError(t, c.Validate())

	c = config.Default()
	assert.Equal(t, 1.0, c.Telemetry.SampleRatio)
	c.Telemetry.SampleRatio = 1.5
	assert.Error(t, c.Validate())
}
