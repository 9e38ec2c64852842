package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetrecon/internal/amqp"
	"budgetrecon/internal/files"
	"budgetrecon/internal/googleauth"
	gsheet "budgetrecon/internal/sheets/google"
	"budgetrecon/internal/sheets/memory"
	"budgetrecon/internal/storage"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. On failure every resource
// created so far is released.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (_ *Backend, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{Type: config.Type}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if err := f.createGoogle(ctx, config, b); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		err = f.createSQLiteBackend(config, b)
	case SheetsBackend:
		err = f.createSheetsBackend(config, b)
	case MemoryBackend:
		f.createMemoryBackend(config, b)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.createUploadStore(ctx, config, b); err != nil {
		return nil, err
	}
	return b, nil
}

// createGoogle builds the Sheets client used both as grid reader for
// sheets:// files and as classification store of the sheets backend.
func (f *DefaultFactory) createGoogle(ctx context.Context, config Config, b *Backend) error {
	if !config.Google.Configured() {
		f.logger.Info("No Google credentials configured, sheets:// files are unavailable")
		return nil
	}
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: config.GoogleSpreadsheetID,
		TabPrefix:     config.TabPrefix,
		Credentials:   config.Google,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	b.Grids = cli
	if config.Type == SheetsBackend {
		b.Classifications = cli
		b.Index = cli
	}
	return nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config, b *Backend) error {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	b.addCleanup(repo.Close)
	b.Classifications = repo
	b.Index = repo
	b.Registry = repo
	b.Checks = append(b.Checks, Check{Name: "sqlite", Check: repo.Ping})

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			b.addCleanup(client.Close)
			b.Publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", b.Publisher != nil)
	return nil
}

func (f *DefaultFactory) createSheetsBackend(config Config, b *Backend) error {
	if b.Classifications == nil {
		return fmt.Errorf("sheets backend requires a Google Sheets client")
	}
	// The spreadsheet holds classifications only; the file list is rebuilt
	// from the local upload directory.
	b.Registry = memory.NewFromDir(config.UploadDir)
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return nil
}

func (f *DefaultFactory) createMemoryBackend(config Config, b *Backend) {
	store := memory.NewFromDir(config.UploadDir)
	b.Classifications = store
	b.Index = store
	b.Registry = store
	f.logger.Info("Initialized memory backend", "upload_dir", config.UploadDir)
}

func (f *DefaultFactory) createUploadStore(ctx context.Context, config Config, b *Backend) error {
	var local *files.LocalStore
	if config.UploadDir != "" {
		var err error
		if local, err = files.NewLocalStore(config.UploadDir); err != nil {
			return fmt.Errorf("failed to initialize local upload store: %w", err)
		}
	}

	switch config.UploadStore {
	case GCSUploads:
		opts, err := googleOptions(ctx, config.Google, gcs.ScopeReadWrite)
		if err != nil {
			return err
		}
		store, err := files.NewGCSStore(ctx, config.GCSBucket, config.GCSPrefix, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS upload store: %w", err)
		}
		b.addCleanup(store.Close)
		b.Upload = store
	case DriveUploads:
		opts, err := googleauth.ClientOptions(ctx, config.Google, drive.DriveFileScope)
		if err != nil {
			return fmt.Errorf("drive credentials: %w", err)
		}
		store, err := files.NewDriveStore(ctx, config.DriveFolderID, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize Drive upload store: %w", err)
		}
		b.Upload = store
	default:
		if local == nil {
			return fmt.Errorf("upload directory is required for local uploads")
		}
		b.Upload = local
	}

	// Workbooks uploaded before a store switch stay readable.
	if local != nil && b.Upload != files.BlobStore(local) {
		b.Readers = append(b.Readers, local)
	}
	f.logger.Info("Initialized upload store", "store", b.Upload.Scheme())
	return nil
}

// googleOptions returns no options when no credentials are set, leaving the
// client on application default credentials.
func googleOptions(ctx context.Context, c googleauth.Credentials, scopes ...string) ([]option.ClientOption, error) {
	if !c.Configured() {
		return nil, nil
	}
	opts, err := googleauth.ClientOptions(ctx, c, scopes...)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return opts, nil
}
