package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "PHOTOKEEPER_"

// parseEnv overlays PHOTOKEEPER_* environment variables. Values that fail
// to parse are ignored and the previous value is kept.
func parseEnv(config *Config) {
	envString(&config.EndpointAddrHTTP, "ADDR")
	envString(&config.LogLevel, "LOG_LEVEL")
	envInt(&config.MaxUploadMB, "MAX_UPLOAD_MB")
	envInt(&config.MaxWidth, "MAX_WIDTH")
	envBool(&config.PersistOriginal, "PERSIST_ORIGINAL")
	envString(&config.WatermarkLabel, "WATERMARK_LABEL")
	if v := getEnv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = splitList(v)
	}
	if v := getEnv("EXTERNAL_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ExternalCallTimeout = d
		}
	}
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.S3PublicBaseURL, "S3_PUBLIC_BASE_URL")
	envString(&config.RecordBackend, "RECORD_BACKEND")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.NotionToken, "NOTION_TOKEN")
	envString(&config.SubmissionsTarget, "SUBMISSIONS_TARGET")
	envString(&config.OriginalsTarget, "ORIGINALS_TARGET")
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envString(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := getEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := getEnv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
