package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PDFConfig controls how source documents are read.
type PDFConfig struct {
	UserPassword  string
	OwnerPassword string
	Strict        bool
	Preview       bool
}

// OutputConfig controls where slices are written.
type OutputConfig struct {
	Dir        string // empty: next to the source document
	S3Bucket   string // empty: no S3 mirror
	S3Prefix   string
	S3Password string // empty: upload unencrypted
}

// SourceConfig controls how remote source references are fetched.
type SourceConfig struct {
	S3Password      string
	DownloadTimeout time.Duration
}

// S3Config overrides the default AWS credential chain, e.g. for MinIO.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// HistoryConfig enables recording runs in Redis.
type HistoryConfig struct {
	RedisURL string
	TTL      time.Duration
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	PDF     PDFConfig
	Output  OutputConfig
	Source  SourceConfig
	S3      S3Config
	History HistoryConfig
	Metrics MetricsConfig
}

// LoadDotEnv loads variables from ENV_FILE (default ".env") without
// overriding ones already set. A missing default file is not an error.
func LoadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults: console goes to stderr, keep it quiet unless asked
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "warn"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", "true")),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "3"), 3),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfslicer",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.PDF = PDFConfig{
		UserPassword:  getEnv("PDF_USER_PASSWORD", ""),
		OwnerPassword: getEnv("PDF_OWNER_PASSWORD", ""),
		Strict:        parseBool(getEnv("PDF_STRICT", "false")),
		Preview:       parseBool(getEnv("PREVIEW", "false")),
	}

	cfg.Output = OutputConfig{
		Dir:        getEnv("OUTPUT_DIR", ""),
		S3Bucket:   getEnv("OUTPUT_S3_BUCKET", ""),
		S3Prefix:   strings.Trim(getEnv("OUTPUT_S3_PREFIX", ""), "/"),
		S3Password: getEnv("OUTPUT_S3_PASSWORD", ""),
	}

	cfg.Source = SourceConfig{
		S3Password:      getEnv("SOURCE_S3_PASSWORD", ""),
		DownloadTimeout: parseDuration(getEnv("DOWNLOAD_TIMEOUT", "60s"), 60*time.Second),
	}

	cfg.S3 = S3Config{
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		Region:          getEnv("S3_REGION", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	cfg.History = HistoryConfig{
		RedisURL: getEnv("HISTORY_REDIS_URL", ""),
		TTL:      parseDuration(getEnv("HISTORY_TTL", "720h"), 30*24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{
		Textfile: getEnv("METRICS_TEXTFILE", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
