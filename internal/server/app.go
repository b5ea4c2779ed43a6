// Package server assembles the coordinator's dependencies and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/api"
	"github.com/JakeFAU/scrape-coordinator/internal/clock/system"
	"github.com/JakeFAU/scrape-coordinator/internal/collector"
	"github.com/JakeFAU/scrape-coordinator/internal/config"
	"github.com/JakeFAU/scrape-coordinator/internal/dispatcher"
	"github.com/JakeFAU/scrape-coordinator/internal/embed"
	"github.com/JakeFAU/scrape-coordinator/internal/geocode"
	"github.com/JakeFAU/scrape-coordinator/internal/id/uuid"
	"github.com/JakeFAU/scrape-coordinator/internal/logging"
	"github.com/JakeFAU/scrape-coordinator/internal/notify"
	"github.com/JakeFAU/scrape-coordinator/internal/notify/sinks"
	memorypublisher "github.com/JakeFAU/scrape-coordinator/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/scrape-coordinator/internal/publisher/pubsub"
	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
	gcsstorage "github.com/JakeFAU/scrape-coordinator/internal/storage/gcs"
	localstorage "github.com/JakeFAU/scrape-coordinator/internal/storage/local"
	memorystorage "github.com/JakeFAU/scrape-coordinator/internal/storage/memory"
	pgstorage "github.com/JakeFAU/scrape-coordinator/internal/storage/postgres"
	"github.com/JakeFAU/scrape-coordinator/internal/storage/sqlite"
)

// App contains the coordinator's long-lived components.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *scrape.Service
	apiServer *api.Server
	hub       *notify.Hub
	dispatch  *dispatcher.Dispatcher
	geocoder  *geocode.Worker

	// Owned infrastructure handles, closed on shutdown.
	pubsubPublisher *gcppublisher.Publisher
	gcsClient       *gcsclient.Client
	pgPool          *pgxpool.Pool
	sqliteStore     *sqlite.Store
}

// stores groups the five persistence ports the service needs. All of them
// come from the same backend so cross-store reads observe the same state.
type stores struct {
	jobs       scrape.JobStore
	strategies scrape.StrategyStore
	batches    scrape.BatchStore
	events     scrape.EventStore
	venues     scrape.VenueStore
}

// Build creates the coordinator's dependency graph from the configuration.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New("scrape-coordinator", cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.Bool("embedded_workers", cfg.Worker.Enabled),
	)

	st, err := setupStores(ctx, app)
	if err != nil {
		return nil, err
	}

	blobStore, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	app.hub = setupNotify(ctx, app, st, blobStore, publisher)

	app.service = scrape.NewService(
		st.jobs,
		st.strategies,
		st.batches,
		st.events,
		st.venues,
		app.hub,
		system.New(),
		uuid.New(),
		scrape.Options{
			DedupWindow:     cfg.Queue.DedupWindow,
			DefaultPriority: cfg.Queue.DefaultPriority,
			BatchPriority:   cfg.Queue.BatchPriority,
		},
		logger.Named("service"),
	)

	if cfg.Worker.Enabled {
		extractor := collector.New(collector.Config{
			BaseURL: cfg.Collector.BaseURL,
			Timeout: cfg.Collector.Timeout,
		})
		app.dispatch = dispatcher.New(app.service, extractor, dispatcher.Config{
			Workers:      cfg.Worker.Count,
			IDPrefix:     cfg.Worker.IDPrefix,
			PollInterval: cfg.Worker.PollInterval,
		}, logger.Named("dispatcher"))
		logger.Info("embedded worker pool configured",
			zap.Int("workers", cfg.Worker.Count),
			zap.String("collector", cfg.Collector.BaseURL),
		)
	}

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	app.apiServer = api.NewServer(app.service, api.Config{
		APIKey:         apiKey,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger.Named("api"))

	return app, nil
}

// Run starts the HTTP server and background loops, then blocks until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	if a.dispatch != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
			a.dispatch.Run(ctx)
		}()
	}
	if a.geocoder != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			a.logger.Info("geocode worker started")
			a.geocoder.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	// Background loops stop on ctx cancel; wait so no report lands after
	// the hub drains.
	background.Wait()

	return a.Close(shutdownCtx)
}

// Close flushes the notification hub and releases infrastructure handles.
func (a *App) Close(ctx context.Context) error {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("notification hub close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func setupStores(ctx context.Context, app *App) (stores, error) {
	switch app.cfg.Storage.Provider {
	case "postgres":
		app.logger.Info("using postgres storage backend")
		pool, err := pgstorage.Connect(ctx, pgstorage.Config{
			DSN:             app.cfg.Storage.Postgres.DSN,
			MaxConns:        app.cfg.Storage.Postgres.MaxConns,
			MinConns:        app.cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: app.cfg.Storage.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return stores{}, fmt.Errorf("postgres connect failed: %w", err)
		}
		if err := pgstorage.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("postgres schema failed: %w", err)
		}
		app.pgPool = pool
		return stores{
			jobs:       pgstorage.NewJobStore(pool),
			strategies: pgstorage.NewStrategyStore(pool),
			batches:    pgstorage.NewBatchStore(pool),
			events:     pgstorage.NewEventStore(pool),
			venues:     pgstorage.NewVenueStore(pool),
		}, nil
	case "sqlite":
		app.logger.Info("using sqlite storage backend",
			zap.String("path", app.cfg.Storage.SQLite.Path))
		store, err := sqlite.Open(ctx, app.cfg.Storage.SQLite.Path)
		if err != nil {
			return stores{}, fmt.Errorf("sqlite open failed: %w", err)
		}
		app.sqliteStore = store
		return stores{
			jobs:       store,
			strategies: store,
			batches:    store,
			events:     store,
			venues:     store,
		}, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return stores{
			jobs:       memorystorage.NewJobStore(),
			strategies: memorystorage.NewStrategyStore(),
			batches:    memorystorage.NewBatchStore(),
			events:     memorystorage.NewEventStore(),
			venues:     memorystorage.NewVenueStore(),
		}, nil
	}
}

func setupArchive(ctx context.Context, app *App) (scrape.BlobStore, error) {
	switch app.cfg.Archive.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Archive.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("archiving reports to gcs", zap.String("bucket", app.cfg.Archive.Bucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{
			BaseDir: app.cfg.Archive.BaseDir,
		})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("archiving reports locally", zap.String("base_dir", app.cfg.Archive.BaseDir))
		return blobStore, nil
	case "memory":
		app.logger.Info("archiving reports in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("report archiving disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (scrape.Publisher, error) {
	switch app.cfg.Publisher.Provider {
	case "pubsub":
		publisher, err := gcppublisher.Connect(ctx, app.cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub connect failed: %w", err)
		}
		app.pubsubPublisher = publisher
		app.logger.Info("publishing job announcements to pub/sub",
			zap.String("project", app.cfg.Publisher.ProjectID),
			zap.String("topic", app.cfg.Publisher.Topic),
		)
		return publisher, nil
	case "memory":
		app.logger.Info("publishing job announcements in memory")
		return memorypublisher.New(), nil
	default:
		app.logger.Info("job announcements disabled")
		return nil, nil
	}
}

func setupNotify(
	ctx context.Context,
	app *App,
	st stores,
	blobStore scrape.BlobStore,
	publisher scrape.Publisher,
) *notify.Hub {
	sinkList := []notify.Sink{
		sinks.NewLogSink(app.logger.Named("notify_log")),
	}
	if publisher != nil {
		sinkList = append(sinkList, sinks.NewPublisherSink(
			publisher,
			app.cfg.Publisher.Topic,
			app.logger.Named("notify_publish"),
		))
	}
	if blobStore != nil {
		sinkList = append(sinkList, sinks.NewArchiveSink(
			blobStore,
			app.logger.Named("notify_archive"),
		))
	}
	if app.cfg.Embedding.BaseURL != "" {
		embedClient := embed.New(embed.Config{
			BaseURL:     app.cfg.Embedding.BaseURL,
			Timeout:     app.cfg.Embedding.Timeout,
			MaxAttempts: app.cfg.Embedding.MaxAttempts,
			Backoff:     app.cfg.Embedding.Backoff,
		}, app.logger.Named("embedding"))
		sinkList = append(sinkList, sinks.NewEmbeddingSink(
			embedClient,
			app.logger.Named("notify_embedding"),
		))
		app.logger.Info("embedding refresh enabled", zap.String("base_url", app.cfg.Embedding.BaseURL))
	}
	if app.cfg.Geocoding.Enabled {
		geocodeClient := geocode.NewClient(app.cfg.Geocoding.BaseURL, app.cfg.Geocoding.UserAgent)
		app.geocoder = geocode.NewWorker(geocodeClient, st.venues, geocode.Config{
			QueueSize:   app.cfg.Geocoding.QueueSize,
			MinInterval: app.cfg.Geocoding.MinInterval,
			MaxAttempts: app.cfg.Geocoding.MaxAttempts,
			Backoff:     app.cfg.Geocoding.Backoff,
		}, app.logger.Named("geocode"))
		sinkList = append(sinkList, sinks.NewGeocodeSink(
			app.geocoder,
			app.logger.Named("notify_geocode"),
		))
		app.logger.Info("venue geocoding enabled", zap.String("base_url", app.cfg.Geocoding.BaseURL))
	}

	hubCfg := notify.Config{
		BufferSize:   app.cfg.Notify.BufferSize,
		MaxBatch:     app.cfg.Notify.MaxBatch,
		MaxBatchWait: app.cfg.Notify.MaxBatchWait,
		SinkTimeout:  app.cfg.Notify.SinkTimeout,
		BaseContext:  ctx,
		Logger:       app.logger.Named("notify_hub"),
	}
	hub := notify.NewHub(hubCfg, sinkList...)
	app.logger.Info("notification hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return hub
}
