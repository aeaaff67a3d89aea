package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/photokeeper/internal/flagx"
	"github.com/dmitrijs2005/photokeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15s" and integer nanoseconds are accepted.
// Pointers distinguish "absent" from zero values for numbers and booleans.
type JsonConfig struct {
	EndpointAddrHTTP      string            `json:"endpoint_addr_http"`
	LogLevel              string            `json:"log_level"`
	MaxUploadMB           *int              `json:"max_upload_mb"`
	MaxWidth              *int              `json:"max_width"`
	PersistOriginal       *bool             `json:"persist_original"`
	WatermarkLabel        string            `json:"watermark_label"`
	AllowedOrigins        []string          `json:"allowed_origins"`
	ExternalCallTimeout   *timex.Duration   `json:"external_call_timeout"`
	S3RootUser            string            `json:"s3_root_user"`
	S3RootPassword        string            `json:"s3_root_password"`
	S3Bucket              string            `json:"s3_bucket"`
	S3Region              string            `json:"s3_region"`
	S3BaseEndpoint        string            `json:"s3_base_endpoint"`
	S3PublicBaseURL       string            `json:"s3_public_base_url"`
	RecordBackend         string            `json:"record_backend"`
	DatabaseDSN           string            `json:"database_dsn"`
	NotionToken           string            `json:"notion_token"`
	SubmissionsTarget     string            `json:"submissions_target"`
	OriginalsTarget       *string           `json:"originals_target"`
	FieldMapping          map[string]string `json:"field_mapping"`
	OriginalsFieldMapping map[string]string `json:"originals_field_mapping"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Without the flag nothing happens. Unreadable or invalid files panic,
// matching how flag errors are treated.
//
// Field mappings replace the defaults entry by entry: a key mapped to ""
// disables that logical field.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.LogLevel, c.LogLevel)
	if c.MaxUploadMB != nil {
		config.MaxUploadMB = *c.MaxUploadMB
	}
	if c.MaxWidth != nil {
		config.MaxWidth = *c.MaxWidth
	}
	if c.PersistOriginal != nil {
		config.PersistOriginal = *c.PersistOriginal
	}
	setString(&config.WatermarkLabel, c.WatermarkLabel)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.ExternalCallTimeout != nil {
		config.ExternalCallTimeout = c.ExternalCallTimeout.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.RecordBackend, c.RecordBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.NotionToken, c.NotionToken)
	setString(&config.SubmissionsTarget, c.SubmissionsTarget)
	if c.OriginalsTarget != nil {
		config.OriginalsTarget = *c.OriginalsTarget
	}
	config.FieldMapping = config.FieldMapping.Merge(c.FieldMapping)
	config.OriginalsFieldMapping = config.OriginalsFieldMapping.Merge(c.OriginalsFieldMapping)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
