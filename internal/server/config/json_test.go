package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":    "www.example:9000",
		"log_level":             "debug",
		"max_upload_mb":         5,
		"max_width":             0,
		"persist_original":      false,
		"watermark_label":       "demo",
		"allowed_origins":       []string{"https://a.example"},
		"external_call_timeout": "3s",
		"s3_root_user":          "user",
		"s3_root_password":      "password",
		"s3_bucket":             "bucket",
		"s3_region":             "region",
		"s3_base_endpoint":      "base_endpoint",
		"s3_public_base_url":    "https://cdn",
		"record_backend":        "notion",
		"database_dsn":          "dsn",
		"notion_token":          "secret_token",
		"submissions_target":    "db1",
		"originals_target":      "",
		"field_mapping":         map[string]string{"status": "State", "email": ""},
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 5, cfg.MaxUploadMB)
		assert.Equal(t, 0, cfg.MaxWidth)
		assert.False(t, cfg.PersistOriginal)
		assert.Equal(t, "demo", cfg.WatermarkLabel)
		assert.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
		assert.Equal(t, 3*time.Second, cfg.ExternalCallTimeout)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "https://cdn", cfg.S3PublicBaseURL)
		assert.Equal(t, "notion", cfg.RecordBackend)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, "secret_token", cfg.NotionToken)
		assert.Equal(t, "db1", cfg.SubmissionsTarget)
		assert.Equal(t, "", cfg.OriginalsTarget)
		assert.Equal(t, "State", cfg.FieldMapping["status"])
		assert.Equal(t, "", cfg.FieldMapping["email"])
		assert.Equal(t, "models", cfg.FieldMapping["models"], "unmentioned entries keep defaults")
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
		assert.True(t, cfg.PersistOriginal)
		assert.Equal(t, "status", cfg.FieldMapping["status"])
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
