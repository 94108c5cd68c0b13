package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
ai:
  default_provider: gemini
  request_timeout: 15s
extraction:
  strategies: [regex]
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "sk-test", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, "gemini", cfg.AI.VisionProvider)
	assert.Equal(t, 15*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, []string{"regex"}, cfg.Extraction.Strategies)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, []string{"vision", "textModel", "regex"}, cfg.Extraction.Strategies)
	assert.Equal(t, "invoices", cfg.Storage.Bucket)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [nope"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv_StrategyList(t *testing.T) {
	env := map[string]string{"EXTRACTION_STRATEGIES": "regex, textModel,,", "MINIO_USE_SSL": "true"}
	var cfg Config
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"regex", "textModel"}, cfg.Extraction.Strategies)
	assert.True(t, cfg.Storage.UseSSL)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	assert.Equal(t, "", DatabaseConfig{Host: "db"}.DSN())
	assert.Equal(t, "postgres://x", DatabaseConfig{URL: "postgres://x"}.DSN())
	assert.Equal(t,
		"postgresql://app:pw@db:5432/invoices?sslmode=disable",
		DatabaseConfig{Host: "db", User: "app", Password: "pw", Name: "invoices"}.DSN())
}
