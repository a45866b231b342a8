// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/api"
	"github.com/portfolieo/portfolio-api/internal/auth"
	"github.com/portfolieo/portfolio-api/internal/billing"
	stripegateway "github.com/portfolieo/portfolio-api/internal/billing/stripe"
	"github.com/portfolieo/portfolio-api/internal/clock/system"
	"github.com/portfolieo/portfolio-api/internal/config"
	collyfetcher "github.com/portfolieo/portfolio-api/internal/fetcher/colly"
	"github.com/portfolieo/portfolio-api/internal/hash/sha256"
	"github.com/portfolieo/portfolio-api/internal/id/uuid"
	"github.com/portfolieo/portfolio-api/internal/ingest"
	ledgermemory "github.com/portfolieo/portfolio-api/internal/ledger/memory"
	ledgerredis "github.com/portfolieo/portfolio-api/internal/ledger/redis"
	"github.com/portfolieo/portfolio-api/internal/logging"
	"github.com/portfolieo/portfolio-api/internal/metadata"
	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/policy/ratelimit"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/profile"
	memorypublisher "github.com/portfolieo/portfolio-api/internal/publisher/memory"
	gcppublisher "github.com/portfolieo/portfolio-api/internal/publisher/pubsub"
	"github.com/portfolieo/portfolio-api/internal/screenshot"
	"github.com/portfolieo/portfolio-api/internal/screenshot/headless"
	gcsstorage "github.com/portfolieo/portfolio-api/internal/storage/gcs"
	localstorage "github.com/portfolieo/portfolio-api/internal/storage/local"
	memorystorage "github.com/portfolieo/portfolio-api/internal/storage/memory"
	pgstore "github.com/portfolieo/portfolio-api/internal/storage/postgres"
)

// recordStore is satisfied by both the Postgres and in-memory stores.
type recordStore interface {
	portfolio.UserStore
	portfolio.ProjectStore
	portfolio.SocialLinkStore
}

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server

	pg           *pgstore.Store
	redis        *redis.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
	renderer     *headless.Renderer
}

// Handler exposes the API for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
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
	return a.Close()
}

// Close releases every client the App opened.
func (a *App) Close() error {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	a.pg.Close()
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return nil
}

// Build creates the application's dependencies. On error everything opened so
// far is closed.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	logger, err := logging.NewWithOptions(logging.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	blobs, mediaDir, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	records, err := setupDatabase(ctx, app)
	if err != nil {
		return nil, err
	}
	clock := system.New()
	ledger, err := setupLedger(ctx, app, clock)
	if err != nil {
		return nil, err
	}
	publisher, topic, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	ids := uuid.New()
	capturer, err := setupScreenshots(app, blobs, ids)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTPTimeout(),
		MaxBodySize: cfg.Metadata.MaxBodyBytes,
	})
	extractor := metadata.New(fetcher, metadata.Config{Timeout: cfg.MetadataTimeout()}, logger.Named("metadata"))

	ingestSvc, err := ingest.New(ingest.Deps{
		Users:       records,
		Projects:    records,
		Extractor:   extractor,
		Screenshots: capturer,
		Limiter:     newLimiter(app),
		Publisher:   publisher,
		IDs:         ids,
		Clock:       clock,
	}, ingest.Config{ScreenshotTimeout: cfg.ScreenshotBudget(), Topic: topic}, logger.Named("ingest"))
	if err != nil {
		return nil, fmt.Errorf("ingest init failed: %w", err)
	}

	profileSvc, err := profile.New(profile.Deps{
		Users:    records,
		Links:    records,
		Projects: records,
		Blobs:    blobs,
		IDs:      ids,
		Clock:    clock,
		Hasher:   sha256.New(),
	}, logger.Named("profile"))
	if err != nil {
		return nil, fmt.Errorf("profile init failed: %w", err)
	}

	billingSvc, err := setupBilling(app, records, ledger)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	app.apiServer = api.NewServer(api.Deps{
		Ingest:            ingestSvc,
		Profile:           profileSvc,
		Billing:           billingSvc,
		Screenshots:       capturer,
		ScreenshotLimiter: newLimiter(app),
		Verifier:          verifier,
		Users:             records,
		Ready:             app.ready,
		MediaDir:          mediaDir,
	}, api.Options{
		PublicBaseURL:        cfg.Server.PublicBaseURL,
		RequestTimeout:       time.Duration(cfg.Server.RequestTimeout) * time.Second,
		PlaceholderCacheSecs: cfg.Screenshot.PlaceholderCacheSecs,
		RedirectCacheSecs:    cfg.Screenshot.RedirectCacheSeconds,
	}, logger.Named("api"))

	return app, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pg != nil {
		if err := a.pg.Ping(ctx); err != nil {
			return err
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	return nil
}

func setupStorage(ctx context.Context, app *App) (portfolio.BlobStore, string, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, "", nil
	case "local":
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{
			BaseDir:       cfg.Local.BaseDir,
			PublicBaseURL: cfg.Local.PublicBaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, blobs.BaseDir(), nil
	default:
		app.logger.Warn("using in-memory storage backend; images are lost on restart")
		return memorystorage.NewBlobStore(), "", nil
	}
}

func setupDatabase(ctx context.Context, app *App) (recordStore, error) {
	cfg := app.cfg.Database
	if cfg.DSN == "" {
		app.logger.Warn("no database DSN configured, using in-memory store")
		return memorystorage.NewStore(), nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}
	app.pg = store
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres migrate failed: %w", err)
	}
	app.logger.Info("postgres store initialized")
	return store, nil
}

func setupLedger(ctx context.Context, app *App, clock portfolio.Clock) (billing.Ledger, error) {
	cfg := app.cfg.Redis
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if cfg.Addr == "" {
		app.logger.Info("no redis configured, webhook dedupe is per-process")
		return ledgermemory.New(ttl, clock), nil
	}
	app.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ledger := ledgerredis.New(app.redis, ttl)
	if err := ledger.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis init failed: %w", err)
	}
	app.logger.Info("redis webhook ledger initialized", zap.String("addr", cfg.Addr))
	return ledger, nil
}

func setupPublisher(ctx context.Context, app *App) (portfolio.Publisher, string, error) {
	cfg := app.cfg.PubSub
	if cfg.ProjectID == "" || cfg.TopicName == "" {
		app.logger.Warn("no Pub/Sub topic configured, logging events in memory")
		return memorypublisher.NewLogging(app.logger.Named("events")), app.cfg.Ingest.Topic, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.publisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	return app.publisher, cfg.TopicName, nil
}

func setupScreenshots(app *App, blobs portfolio.BlobStore, ids portfolio.IDGenerator) (*screenshot.Acquirer, error) {
	cfg := app.cfg.Screenshot
	client := &http.Client{Timeout: time.Duration(cfg.APITimeoutSeconds) * time.Second}
	var strategies []screenshot.Strategy

	providers := []struct {
		provider screenshot.Provider
		key      string
	}{
		{screenshot.ProviderScreenshotAPI, cfg.ScreenshotAPIToken},
		{screenshot.ProviderScreenshotOne, cfg.ScreenshotOneKey},
	}
	for _, p := range providers {
		if p.key == "" {
			continue
		}
		strategy, err := screenshot.NewAPIStrategy(screenshot.APIConfig{
			Provider: p.provider,
			Key:      p.key,
			Timeout:  client.Timeout,
			Prefix:   cfg.Prefix,
		}, client, blobs, ids)
		if err != nil {
			return nil, fmt.Errorf("screenshot provider init failed: %w", err)
		}
		strategies = append(strategies, strategy)
	}

	if cfg.Headless.Enabled {
		renderer, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         app.cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay:       time.Duration(cfg.Headless.SettleMillis) * time.Millisecond,
			HardTimeout:       time.Duration(cfg.Headless.HardTimeoutSec) * time.Second,
			ExecPath:          cfg.Headless.ExecPath,
			Prefix:            cfg.Prefix,
		}, blobs, ids, app.logger.Named("headless"))
		if err != nil {
			app.logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			app.renderer = renderer
			strategies = append(strategies, renderer)
		}
	}

	acquirer := screenshot.NewAcquirer(app.logger.Named("screenshot"), strategies...)
	app.logger.Info("screenshot chain configured", zap.Strings("strategies", acquirer.Strategies()))
	return acquirer, nil
}

func setupBilling(app *App, users portfolio.UserStore, ledger billing.Ledger) (*billing.Service, error) {
	cfg := app.cfg.Stripe
	logger := app.logger.Named("billing")
	if cfg.SecretKey == "" {
		logger.Warn("stripe not configured, billing endpoints will return 503")
		return billing.NewService(users, nil, ledger, logger), nil
	}
	gateway, err := stripegateway.New(stripegateway.Config{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		Currency:      cfg.Currency,
		UnitAmount:    cfg.UnitAmount,
		ProductName:   cfg.ProductName,
		SuccessURL:    cfg.SuccessURL,
		CancelURL:     cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe init failed: %w", err)
	}
	return billing.NewService(users, gateway, ledger, logger), nil
}

func newLimiter(app *App) portfolio.Limiter {
	cfg := app.cfg.RateLimit
	if !cfg.Enabled {
		return ratelimit.Unlimited{}
	}
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RPS,
		DefaultBurst: cfg.Burst,
		IdleTTL:      time.Hour,
	})
}
