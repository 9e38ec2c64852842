package backend

import (
	"fmt"

	"budgetrecon/internal/config"
	"budgetrecon/internal/googleauth"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID string
	TabPrefix           string
	Google              googleauth.Credentials

	// Uploaded workbooks
	UploadStore   UploadStoreType
	UploadDir     string
	GCSBucket     string
	GCSPrefix     string
	DriveFolderID string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		TabPrefix:           appConfig.ClassificationTabPrefix,
		Google:              appConfig.Google,

		UploadStore:   UploadStoreType(appConfig.UploadStore),
		UploadDir:     appConfig.UploadDir,
		GCSBucket:     appConfig.GCSBucket,
		GCSPrefix:     appConfig.GCSPrefix,
		DriveFolderID: appConfig.DriveFolderID,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if !c.Google.Configured() {
			return fmt.Errorf("Google credentials are required for sheets backend")
		}
	}

	switch c.UploadStore {
	case LocalUploads, "":
		if c.UploadDir == "" {
			return fmt.Errorf("upload directory is required for local uploads")
		}
	case GCSUploads:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS bucket is required for gcs uploads")
		}
	case DriveUploads:
		if c.DriveFolderID == "" {
			return fmt.Errorf("Drive folder ID is required for drive uploads")
		}
		if !c.Google.Configured() {
			return fmt.Errorf("Google credentials are required for drive uploads")
		}
	default:
		return fmt.Errorf("invalid upload store: %s", c.UploadStore)
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{SQLiteBackend.String(), SheetsBackend.String(), MemoryBackend.String()}
}
