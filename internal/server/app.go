// Package server wires the submission pipeline together and runs the HTTP
// server until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/photokeeper/internal/logging"
	"github.com/dmitrijs2005/photokeeper/internal/server/config"
	"github.com/dmitrijs2005/photokeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/photokeeper/internal/server/keys"
	"github.com/dmitrijs2005/photokeeper/internal/server/records"
	"github.com/dmitrijs2005/photokeeper/internal/server/records/notion"
	"github.com/dmitrijs2005/photokeeper/internal/server/records/postgres"
	"github.com/dmitrijs2005/photokeeper/internal/server/storage"
	"github.com/dmitrijs2005/photokeeper/internal/server/submissions"
	"github.com/dmitrijs2005/photokeeper/internal/server/transform"
)

// Seams for tests.
var (
	newArtifactStore = func(ctx context.Context, c storage.S3Config) (storage.ArtifactStore, error) {
		return storage.NewS3Store(ctx, c)
	}
	openDB           = postgres.Open
	migrateDB        = postgres.Migrate
	newNotionStore   = func(token string) records.Store { return notion.NewStore(token) }
	newPostgresStore = func(db *sql.DB) records.Store { return postgres.NewStore(db) }
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *httpapi.Server
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	store, err := newArtifactStore(ctx, storage.S3Config{
		User:          c.S3RootUser,
		Password:      c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.PublicBaseURL(),
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	chain, err := transform.NewChain(c.WatermarkLabel)
	if err != nil {
		return nil, fmt.Errorf("transform chain init error: %w", err)
	}

	recordStore, err := app.recordStore(ctx)
	if err != nil {
		return nil, err
	}
	var recorder submissions.Recorder
	if recordStore != nil {
		recorder = records.NewRecorder(recordStore,
			records.Ledger{Target: c.SubmissionsTarget, Mapping: c.FieldMapping},
			records.Ledger{Target: c.OriginalsTarget, Mapping: c.OriginalsFieldMapping},
			c.ExternalCallTimeout, logger)
	}

	coordinator := submissions.New(keys.NewIDGenerator(), chain, store, recorder, submissions.Config{
		MaxUploadBytes:  c.MaxUploadBytes(),
		MaxWidth:        c.MaxWidth,
		PersistOriginal: c.PersistOriginal,
		CallTimeout:     c.ExternalCallTimeout,
	}, logger)

	router := httpapi.NewRouter(httpapi.NewHandler(coordinator, c.MaxUploadBytes(), logger), c.AllowedOrigins, logger)
	app.server = httpapi.NewServer(c.EndpointAddrHTTP, router, logger)
	return app, nil
}

// recordStore builds the configured metadata backend. It returns nil when
// metadata recording is disabled.
func (app *App) recordStore(ctx context.Context) (records.Store, error) {
	c := app.config
	switch c.RecordBackend {
	case "", config.RecordBackendNone:
		return nil, nil
	case config.RecordBackendNotion:
		if c.NotionToken == "" {
			return nil, errors.New("notion record backend needs a token")
		}
		return newNotionStore(c.NotionToken), nil
	case config.RecordBackendPostgres:
		db, err := openDB(c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		mctx, cancel := context.WithTimeout(ctx, c.ExternalCallTimeout)
		defer cancel()
		if err := migrateDB(mctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		return newPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown record backend %q", c.RecordBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.RecordBackend)

	app.initSignalHandler(cancelFunc)

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			cancelFunc()
		}
	}()

	wg.Wait()

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.logger.Warn(ctx, "close error", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
	return runErr
}
