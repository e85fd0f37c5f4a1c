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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
server:
  host: "0.0.0.0"
  port: 8060
database:
  host: "localhost"
  port: 5432
  user: "app"
  dbname: "domaindesk"
`

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))

		require.NoError(t, err)
		assert.Equal(t, "https://api.namecheap.com/xml.response", cfg.Registrar.BaseURL)
		assert.Equal(t, 100, cfg.Registrar.PageSize)
		assert.Equal(t, "trustpositif.komdigi.go.id", cfg.ContentFilter.Host)
		assert.Equal(t, "http", cfg.ContentFilter.Transport)
		assert.Equal(t, 50, cfg.ContentFilter.BatchSize)
		assert.Equal(t, 5*time.Minute, cfg.ContentFilter.ScriptTimeout)
		assert.Equal(t, 5*time.Second, cfg.DNS.Timeout)
		assert.Equal(t, time.Hour, cfg.Sync.NameserverInterval)
		assert.Equal(t, 15*time.Minute, cfg.Sync.FilterInterval)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
	})

	t.Run("env overrides win", func(t *testing.T) {
		t.Setenv("REGISTRAR_API_KEY", "from-env")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("CONTENT_FILTER_TRANSPORT", "curl")

		cfg, err := Load(writeConfig(t, minimalConfig))

		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Registrar.APIKey)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "curl", cfg.ContentFilter.Transport)
	})

	t.Run("rejects unknown transport", func(t *testing.T) {
		path := writeConfig(t, minimalConfig+`
content_filter:
  transport: "carrier-pigeon"
`)

		_, err := Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport")
	})

	t.Run("rejects missing database", func(t *testing.T) {
		path := writeConfig(t, `
server:
  host: "0.0.0.0"
  port: 8060
`)

		_, err := Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.host")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		assert.Equal(t, "config.yml", GetConfigPath("config.yml"))
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "/etc/domaindesk/config.yml")
		assert.Equal(t, "/etc/domaindesk/config.yml", GetConfigPath("config.yml"))
	})
}
