package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, "X-Session-Id", cfg.Session.HeaderName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "session mode", mutate: func(c *Config) { c.Session.Mode = "query" }},
		{name: "database driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }},
		{name: "vector backend", mutate: func(c *Config) { c.VectorStore.Backend = "chroma" }},
		{name: "qdrant without dimensions", mutate: func(c *Config) { c.VectorStore.Backend = "qdrant" }},
		{name: "llm provider", mutate: func(c *Config) { c.LLM.Provider = "llama" }},
		{name: "overlap too large", mutate: func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
driver = "sqlite"
path = "from-file.db"

[retrieval]
top_k = 7
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_PATH", "from-env.db")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("RETRIEVAL_THRESHOLD", "0.5")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "from-env.db", cfg.DSN())
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.5, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, "google-key", cfg.LLM.APIKey)
	assert.Equal(t, 3000, cfg.App.Port)
}

func TestDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "host=127.0.0.1 port=5432 user=postgres password= dbname=pdfqa sslmode=disable", cfg.DSN())

	cfg.Database.Driver = "mysql"
	cfg.Database.Port = 3306
	cfg.Database.Params = "parseTime=true"
	assert.Equal(t, "postgres:@tcp(127.0.0.1:3306)/pdfqa?parseTime=true", cfg.DSN())
}
