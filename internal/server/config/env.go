package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvHTTPAddr       = "GOPHDRIVE_HTTP_ADDR"
	EnvGRPCAddr       = "GOPHDRIVE_GRPC_ADDR"
	EnvDatabaseDSN    = "GOPHDRIVE_DATABASE_DSN"
	EnvSecretKey      = "GOPHDRIVE_SECRET_KEY"
	EnvAccessTokenTTL = "GOPHDRIVE_ACCESS_TOKEN_TTL"
	EnvStorageBackend = "GOPHDRIVE_STORAGE_BACKEND"
	EnvLocalDir       = "GOPHDRIVE_LOCAL_DIR"
	EnvLocalBaseURL   = "GOPHDRIVE_LOCAL_BASE_URL"
	EnvS3AccessKey    = "GOPHDRIVE_S3_ACCESS_KEY"
	EnvS3SecretKey    = "GOPHDRIVE_S3_SECRET_KEY"
	EnvS3Bucket       = "GOPHDRIVE_S3_BUCKET"
	EnvS3Region       = "GOPHDRIVE_S3_REGION"
	EnvS3Endpoint     = "GOPHDRIVE_S3_ENDPOINT"
	EnvS3PublicURL    = "GOPHDRIVE_S3_PUBLIC_URL"
	EnvS3PartSize     = "GOPHDRIVE_S3_PART_SIZE"
	EnvStorageTimeout = "GOPHDRIVE_STORAGE_TIMEOUT"
	EnvMaxUploadBytes = "GOPHDRIVE_MAX_UPLOAD_BYTES"
	EnvRedisAddr      = "GOPHDRIVE_REDIS_ADDR"
	EnvLogLevel       = "GOPHDRIVE_LOG_LEVEL"
)

const dotenvFile = ".env"

// loadDotenv is a seam for tests.
var loadDotenv = func() error {
	return godotenv.Load(dotenvFile)
}

// parseEnv overlays values from the process environment. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment are not overridden by it. Malformed numbers and durations
// are ignored so that a bad variable never hides the defaults.
func parseEnv(config *Config) {
	_ = loadDotenv()

	envString(EnvHTTPAddr, &config.HTTPAddr)
	envString(EnvGRPCAddr, &config.GRPCAddr)
	envString(EnvDatabaseDSN, &config.DatabaseDSN)
	envString(EnvSecretKey, &config.SecretKey)
	envDuration(EnvAccessTokenTTL, &config.AccessTokenValidityDuration)
	envString(EnvStorageBackend, &config.StorageBackend)
	envString(EnvLocalDir, &config.LocalStorageDir)
	envString(EnvLocalBaseURL, &config.LocalBaseURL)
	envString(EnvS3AccessKey, &config.S3RootUser)
	envString(EnvS3SecretKey, &config.S3RootPassword)
	envString(EnvS3Bucket, &config.S3Bucket)
	envString(EnvS3Region, &config.S3Region)
	envString(EnvS3Endpoint, &config.S3BaseEndpoint)
	envString(EnvS3PublicURL, &config.S3PublicBaseURL)
	envInt64(EnvS3PartSize, &config.S3PartSize)
	envDuration(EnvStorageTimeout, &config.StorageTimeout)
	envInt64(EnvMaxUploadBytes, &config.MaxUploadBytes)
	envString(EnvRedisAddr, &config.RedisAddr)
	envString(EnvLogLevel, &config.LogLevel)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envInt64(name string, dst *int64) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
