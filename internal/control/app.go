// Package control wires the pipeline's components together and owns the
// application lifecycle: storage selection, stage construction, tickers,
// and graceful shutdown.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/apppro/content-pipeline/internal/collect"
	"github.com/apppro/content-pipeline/internal/core/config"
	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/generate"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/health"
	redisclient "github.com/apppro/content-pipeline/internal/infra/redis"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/infra/storage/memory"
	"github.com/apppro/content-pipeline/internal/infra/storage/postgres"
	"github.com/apppro/content-pipeline/internal/notify"
	"github.com/apppro/content-pipeline/internal/pipeline"
	"github.com/apppro/content-pipeline/internal/publish"
)

// Config holds the application configuration.
type Config struct {
	Port      int
	SiteURL   string
	Feeds     []collect.Feed
	Generator generate.ClientConfig
	Mail      publish.MailConfig
	Schedule  config.ScheduleConfig
	Redis     redisclient.Config
	Database  postgres.Config
}

// App is the main application struct that manages the pipeline lifecycle.
type App struct {
	cfg           Config
	cycle         *healing.Cycle
	collectStage  *pipeline.CollectStage
	generateStage *pipeline.GenerateStage
	publishStage  *pipeline.PublishStage
	healthServer  *health.Server
	db            *postgres.DB
	redisClient   *redisclient.Client
	log           *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg Config) (*App, error) {

	// 1. Initialize Storage
	var (
		runRepo       storage.RunRepository
		errorRepo     storage.ErrorRepository
		contentRepo   storage.ContentRepository
		channelRepo   storage.ChannelRepository
		distRepo      storage.DistributionRepository
		collectedRepo storage.CollectedItemRepository
		notifRepo     storage.NotificationRepository
		documents     publish.DocumentStore
		db            *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the *sql.DB that sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		runRepo = postgres.NewRunRepo(db)
		errorRepo = postgres.NewErrorRepo(db)
		contentRepo = postgres.NewContentRepo(db)
		channelRepo = postgres.NewChannelRepo(db)
		distRepo = postgres.NewDistributionRepo(db)
		collectedRepo = postgres.NewCollectedItemRepo(db)
		notifRepo = postgres.NewNotificationRepo(db)
		documents = postgres.NewDocumentRepo(db)

		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		store.SeedChannels(defaultChannels())
		runRepo = memory.NewRunRepo(store)
		errorRepo = memory.NewErrorRepo(store)
		contentRepo = memory.NewContentRepo(store)
		channelRepo = memory.NewChannelRepo(store)
		distRepo = memory.NewDistributionRepo(store)
		collectedRepo = memory.NewCollectedItemRepo(store)
		notifRepo = memory.NewNotificationRepo(store)
		documents = memory.NewDocumentRepo(store)

		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis (optional seen-URL cache)
	var redisClient *redisclient.Client
	var seen collect.SeenCache
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, seen-URL cache disabled", "error", err)
		} else {
			seen = redisClient
		}
	}

	// 3. Healing
	executor := healing.NewExecutor(errorRepo)
	gate := healing.NewGate(errorRepo)
	cycle := healing.NewCycle(runRepo, errorRepo, healing.NewClassifier(), gate)

	// 4. Capabilities
	linkHost := siteHost(cfg.SiteURL)
	collector := collect.New(cfg.Feeds, seen)

	var generator generate.Generator
	if cfg.Generator.URL != "" {
		generator = generate.NewClient(cfg.Generator)
	} else {
		slog.Warn("No generator endpoint configured, using deterministic mock drafts")
		generator = &generate.Mock{LinkHost: linkHost}
	}
	scorer := &generate.Scorer{LinkHost: linkHost}

	notifier := notify.New(notifRepo)
	gate.SetNotifier(notifier)

	blog := publish.NewBlogPublisher(documents, cfg.SiteURL)
	mailClient := publish.NewMailClient(cfg.Mail)
	newsletter := publish.NewNewsletterPublisher(mailClient, cfg.Mail.ListID, cfg.SiteURL)
	orchestrator := publish.NewOrchestrator(
		channelRepo, distRepo, contentRepo, executor, gate, blog, newsletter,
		credentials(cfg),
	)

	// 5. Stages
	runner := pipeline.NewRunner(runRepo)
	collectStage := pipeline.NewCollectStage(runner, collector, collectedRepo, executor, gate)
	generateStage := pipeline.NewGenerateStage(runner, generator, scorer, contentRepo,
		collectedRepo, executor, gate, notifier, cfg.Generator.Model)
	publishStage := pipeline.NewPublishStage(runner, contentRepo, orchestrator, executor, gate, notifier)

	// 6. Health
	var deps []health.Dependency
	if db != nil {
		deps = append(deps, health.Dependency{Name: "postgres", Pinger: db})
	}
	if redisClient != nil {
		deps = append(deps, health.Dependency{Name: "redis", Pinger: redisClient, Optional: true})
	}
	monitor := health.NewMonitor(errorRepo, contentRepo, runRepo, deps)
	healthServer := health.NewServer(monitor, cfg.Port)

	return &App{
		cfg:           cfg,
		cycle:         cycle,
		collectStage:  collectStage,
		generateStage: generateStage,
		publishStage:  publishStage,
		healthServer:  healthServer,
		db:            db,
		redisClient:   redisClient,
		log:           slog.Default(),
	}, nil
}

// defaultChannels is the channel registry used when no database owns it.
func defaultChannels() []*domain.Channel {
	now := time.Now().UnixMilli()
	return []*domain.Channel{
		{ID: "ch-blog", Name: "blog", Type: domain.ChannelBlog, Platform: "site", Active: true, CreatedAt: now},
		{ID: "ch-newsletter", Name: "newsletter", Type: domain.ChannelNewsletter, Platform: "campaign-mail", CredentialsRef: "MAIL_API_KEY", Active: true, CreatedAt: now},
		{ID: "ch-sns", Name: "sns", Type: domain.ChannelSNS, Platform: "social", CredentialsRef: "SNS_API_KEY", Active: true, CreatedAt: now},
	}
}

// credentials resolves channel credential references. Config values win over
// the environment so one deployment file can carry everything.
func credentials(cfg Config) map[string]string {
	creds := make(map[string]string)
	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			creds[key] = value
		}
	}
	if cfg.Mail.APIKey != "" {
		creds["MAIL_API_KEY"] = cfg.Mail.APIKey
	}
	return creds
}

func siteHost(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// Start starts the health server and the stage tickers.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	go a.runTicker(ctx, "healing", a.cfg.Schedule.HealingInterval, func(ctx context.Context) {
		a.cycle.Run(ctx, domain.TriggerScheduled)
	})
	go a.runTicker(ctx, "content", a.cfg.Schedule.ContentInterval, a.contentPass)
	go a.runTicker(ctx, "publish", a.cfg.Schedule.PublishInterval, func(ctx context.Context) {
		a.publishStage.Run(ctx, domain.TriggerScheduled)
	})

	return nil
}

// RunOnce executes one full pass: self-healing, collect, generate, publish.
func (a *App) RunOnce(ctx context.Context) {
	a.cycle.Run(ctx, domain.TriggerManual)
	if outcome := a.collectStage.Run(ctx, domain.TriggerManual); !outcome.Success {
		a.log.Warn("Collect did not succeed, generating without fresh material")
	}
	a.generateStage.Run(ctx, "", "", domain.TriggerManual)
	a.publishStage.Run(ctx, domain.TriggerManual)
}

// contentPass runs the scheduled editorial pass: clear residual errors, then
// collect fresh material, then generate the day's draft.
func (a *App) contentPass(ctx context.Context) {
	a.cycle.Run(ctx, domain.TriggerScheduled)
	if outcome := a.collectStage.Run(ctx, domain.TriggerScheduled); !outcome.Success {
		a.log.Warn("Collect did not succeed, generating without fresh material")
	}
	a.generateStage.Run(ctx, "", "", domain.TriggerScheduled)
}

func (a *App) runTicker(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	a.log.Info("Starting ticker", "name", name, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Stop stops the application.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping pipeline...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}
