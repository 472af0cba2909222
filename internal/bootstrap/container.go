// Package bootstrap builds the dependency graph shared by the API server and
// the admin CLI. Every client is constructed here and injected downward.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/adapters/cache"
	"github.com/karasuemlak/backend/internal/adapters/database"
	"github.com/karasuemlak/backend/internal/adapters/events"
	postgrestadapter "github.com/karasuemlak/backend/internal/adapters/postgrest"
	"github.com/karasuemlak/backend/internal/adapters/providers/improver"
	"github.com/karasuemlak/backend/internal/application/quality"
	"github.com/karasuemlak/backend/internal/application/services"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgres"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgrest"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/redis"
	"github.com/karasuemlak/backend/migrations"
	"github.com/karasuemlak/backend/pkg/config"
	"github.com/karasuemlak/backend/pkg/retry"
)

// Content store drivers accepted by CONTENT_STORE
const (
	ContentStorePostgREST = "postgrest"
	ContentStorePostgres  = "postgres"
)

// Container holds the wired clients, adapters and services
type Container struct {
	Config *config.Config

	Postgres *postgres.Client
	Redis    *redis.Client

	Cache    providers.CacheProvider
	EventBus providers.EventBus

	Jobs    repositories.ImprovementJobRepository
	Content repositories.ContentRepository

	Analyzer    *quality.Analyzer
	Improvement *services.ContentImprovementService
}

// Options controls which optional pieces are started
type Options struct {
	// RunMigrations overrides cfg.Database.RunMigrations when set
	RunMigrations *bool
}

// New connects to every backing service and wires the improvement pipeline.
// Redis is optional: without it there is no job cache, no cross-tab
// streaming and rate limiting falls back to the in-process limiter.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{Config: cfg}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	c.Postgres = pgClient
	log.Info().Msg("PostgreSQL client initialized successfully")

	runMigrations := cfg.Database.RunMigrations
	if opts.RunMigrations != nil {
		runMigrations = *opts.RunMigrations
	}
	if runMigrations {
		if err := migrations.Up(ctx, pgClient.DB()); err != nil {
			c.Close()
			return nil, err
		}
		log.Info().Msg("Database migrations applied")
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// Continue without Redis - jobs are still persisted in Postgres
			log.Warn().Err(err).Msg("Failed to initialize Redis client")
		} else {
			c.Redis = redisClient
			c.Cache = cache.NewRedisAdapter(redisClient)
			c.EventBus = events.NewRedisEventBus(redisClient)
			log.Info().Msg("Redis client initialized successfully")
		}
	}

	c.Jobs = database.NewImprovementJobAdapter(pgClient)
	if c.Cache != nil {
		c.Jobs = database.NewCachedImprovementJobAdapter(c.Jobs, c.Cache)
		log.Info().Msg("Improvement job adapter wrapped with caching layer")
	}

	store, err := newContentStore(cfg, pgClient)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Content = services.NewRetryingContentWriter(store, storeRetryConfig(cfg.Improvement))

	rules := quality.DefaultRules()
	if cfg.Improvement.QualityRulesPath != "" {
		rules, err = quality.LoadRules(cfg.Improvement.QualityRulesPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load quality rules: %w", err)
		}
	}
	c.Analyzer = quality.NewAnalyzer(rules)

	contentImprover, err := improver.NewContentImprover(cfg, c.Analyzer)
	if err != nil {
		c.Close()
		return nil, err
	}
	log.Info().Str("provider", cfg.Improvement.Provider).Msg("Content improver initialized")

	limiter := services.NewRateLimiter(c.Cache, cfg.Improvement.RateLimitPerHour, time.Hour)

	c.Improvement = services.NewContentImprovementService(
		c.Jobs,
		c.Content,
		contentImprover,
		c.Analyzer,
		limiter,
		cfg.Improvement.ProviderTimeout,
	)

	return c, nil
}

func newContentStore(cfg *config.Config, pgClient *postgres.Client) (repositories.ContentRepository, error) {
	switch cfg.ContentStore.Driver {
	case ContentStorePostgREST, "":
		client, err := postgrest.NewClient(&cfg.Supabase, cfg.ContentStore.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgREST client: %w", err)
		}
		log.Info().Str("url", cfg.Supabase.URL).Msg("Content store: PostgREST")
		return postgrestadapter.NewContentAdapter(client), nil
	case ContentStorePostgres:
		log.Info().Msg("Content store: direct Postgres")
		return database.NewContentAdapter(pgClient), nil
	default:
		return nil, fmt.Errorf("unknown content store driver %q", cfg.ContentStore.Driver)
	}
}

func storeRetryConfig(cfg config.ImprovementConfig) retry.Config {
	rc := retry.StoreWriteConfig()
	if cfg.StoreMaxAttempts > 0 {
		rc.MaxAttempts = cfg.StoreMaxAttempts
	}
	if cfg.StoreInitialDelay > 0 {
		rc.InitialDelay = cfg.StoreInitialDelay
	}
	if cfg.StoreMaxDelay > 0 {
		rc.MaxDelay = cfg.StoreMaxDelay
	}
	return rc
}

// Ping checks the backing services the API depends on
func (c *Container) Ping(ctx context.Context) error {
	if err := c.Postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every client the container opened
func (c *Container) Close() error {
	var errs []error
	if c.EventBus != nil {
		errs = append(errs, c.EventBus.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Close())
	}
	return errors.Join(errs...)
}
