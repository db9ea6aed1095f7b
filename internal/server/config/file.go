package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
	"github.com/dmitrijs2005/gophdrive/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. It is decoded from JSON
// or, for .yaml/.yml files, from YAML, and then merged into Config. Zero
// values leave the current setting untouched.
type FileConfig struct {
	HTTPAddr                    string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr                    string         `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	StorageBackend              string         `json:"storage_backend" yaml:"storage_backend"`
	LocalStorageDir             string         `json:"local_storage_dir" yaml:"local_storage_dir"`
	LocalBaseURL                string         `json:"local_base_url" yaml:"local_base_url"`
	S3RootUser                  string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PublicBaseURL             string         `json:"s3_public_base_url" yaml:"s3_public_base_url"`
	S3PartSize                  int64          `json:"s3_part_size" yaml:"s3_part_size"`
	StorageTimeout              timex.Duration `json:"storage_timeout" yaml:"storage_timeout"`
	MaxUploadBytes              int64          `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	RedisAddr                   string         `json:"redis_addr" yaml:"redis_addr"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads the config file named by -c/-config (or $GOPHDRIVE_CONFIG)
// into config. Without a path nothing happens. An unreadable or malformed
// file panics: starting with half a configuration is worse than not starting.
func parseFile(config *Config) {

	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.mergeInto(config)
}

func (c *FileConfig) mergeInto(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.LocalStorageDir, c.LocalStorageDir)
	setString(&config.LocalBaseURL, c.LocalBaseURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	if c.S3PartSize > 0 {
		config.S3PartSize = c.S3PartSize
	}
	if c.StorageTimeout.Duration > 0 {
		config.StorageTimeout = c.StorageTimeout.Duration
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
