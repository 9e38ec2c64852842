package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"budgetrecon/internal/core"
	"budgetrecon/internal/googleauth"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port string `yaml:"port"`

	// Backend selection for classifications and the file registry
	DataBackend  string `yaml:"data_backend"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets
	GoogleSpreadsheetID     string                 `yaml:"google_spreadsheet_id"`
	ClassificationTabPrefix string                 `yaml:"classification_tab_prefix"`
	Google                  googleauth.Credentials `yaml:"-"`

	// Uploaded workbooks
	UploadStore   string `yaml:"upload_store"`
	UploadDir     string `yaml:"upload_dir"`
	GCSBucket     string `yaml:"gcs_bucket"`
	GCSPrefix     string `yaml:"gcs_prefix"`
	DriveFolderID string `yaml:"drive_folder_id"`

	// Exchange rates
	RateProviders   []string      `yaml:"rate_providers"`
	StaticRates     string        `yaml:"static_rates"`
	RateTTL         time.Duration `yaml:"rate_ttl"`
	RateTimeout     time.Duration `yaml:"rate_timeout"`
	RateRefreshCron string        `yaml:"rate_refresh_cron"`

	// Reports and classifications
	ReportTimeout time.Duration `yaml:"report_timeout"`
	DefaultStatus string        `yaml:"default_status"`

	// Worker
	ResyncCron string `yaml:"resync_cron"`
}

func defaults() *Config {
	return &Config{
		Port:            "8081",
		DataBackend:     "sqlite",
		SQLiteDBPath:    "./data/budgetrecon.db",
		AMQPExchange:    "budgetrecon",
		AMQPQueue:       "sync_classifications",
		UploadStore:     "local",
		UploadDir:       "./data/uploads",
		RateProviders:   []string{"exchangerate.host", "open.er-api.com"},
		RateTTL:         60 * time.Minute,
		RateTimeout:     15 * time.Second,
		RateRefreshCron: "0 0 * * * *",
		ReportTimeout:   60 * time.Second,
		DefaultStatus:   string(core.StatusToBeConfirmed),
		ResyncCron:      "0 0 3 * * *",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE when set, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.ClassificationTabPrefix = getEnv("CLASSIFICATION_TAB_PREFIX", cfg.ClassificationTabPrefix)
	cfg.Google = googleauth.CredentialsFromEnv()

	cfg.UploadStore = getEnv("UPLOAD_STORE", cfg.UploadStore)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.GCSBucket = getEnv("GCS_BUCKET", cfg.GCSBucket)
	cfg.GCSPrefix = getEnv("GCS_PREFIX", cfg.GCSPrefix)
	cfg.DriveFolderID = getEnv("DRIVE_FOLDER_ID", cfg.DriveFolderID)

	cfg.RateProviders = getEnvList("RATE_PROVIDERS", cfg.RateProviders)
	cfg.StaticRates = getEnv("STATIC_RATES", cfg.StaticRates)
	cfg.RateTTL = getEnvDuration("RATE_TTL", cfg.RateTTL)
	cfg.RateTimeout = getEnvDuration("RATE_TIMEOUT", cfg.RateTimeout)
	cfg.RateRefreshCron = getEnv("RATE_REFRESH_CRON", cfg.RateRefreshCron)

	cfg.ReportTimeout = getEnvDuration("REPORT_TIMEOUT", cfg.ReportTimeout)
	// An explicitly empty value means cells start unset.
	if v, ok := os.LookupEnv("CLASSIFICATION_DEFAULT_STATUS"); ok {
		cfg.DefaultStatus = v
	}

	cfg.ResyncCron = getEnv("RESYNC_CRON", cfg.ResyncCron)

	return cfg, nil
}

// DefaultStatusLabel returns the parsed default status; Validate reports an
// unknown label.
func (c *Config) DefaultStatusLabel() core.StatusLabel {
	l, _ := core.ParseStatusLabel(c.DefaultStatus)
	return l
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DataBackend == "sheets" && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}

	validStores := []string{"local", "gcs", "drive"}
	switch {
	case !oneOf(c.UploadStore, validStores):
		errors = append(errors, fmt.Sprintf("invalid upload store '%s': must be one of %v", c.UploadStore, validStores))
	case c.UploadStore == "local" && c.UploadDir == "":
		errors = append(errors, "upload directory cannot be empty when using local upload store")
	case c.UploadStore == "gcs" && c.GCSBucket == "":
		errors = append(errors, "GCS bucket is required when using gcs upload store")
	case c.UploadStore == "drive" && c.DriveFolderID == "":
		errors = append(errors, "Drive folder ID is required when using drive upload store")
	}

	if len(c.RateProviders) == 0 {
		errors = append(errors, "at least one rate provider is required")
	}
	for _, p := range c.RateProviders {
		if strings.EqualFold(strings.TrimSpace(p), "static") && c.StaticRates == "" {
			errors = append(errors, "STATIC_RATES is required when the static rate provider is enabled")
		}
	}
	if c.RateTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate TTL %v: must be at least 1 minute", c.RateTTL))
	}
	if c.RateTimeout < time.Second || c.RateTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be between 1 second and 2 minutes", c.RateTimeout))
	}
	if c.ReportTimeout < time.Second || c.ReportTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report timeout %v: must be between 1 second and 10 minutes", c.ReportTimeout))
	}
	if _, err := core.ParseStatusLabel(c.DefaultStatus); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default status '%s': must be empty or one of %v", c.DefaultStatus, core.StatusLabels()))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
