package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/teamlens/teamlens/internal/auth"
	"github.com/teamlens/teamlens/internal/cache"
	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/health"
	"github.com/teamlens/teamlens/internal/limits"
	"github.com/teamlens/teamlens/internal/observability"
	"github.com/teamlens/teamlens/internal/refdata"
	"github.com/teamlens/teamlens/internal/storage/blob"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/upstream"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config            *config.Config
	DBPool            *pgxpool.Pool
	Redis             *redis.Client
	Store             *store.Store
	Upstream          *upstream.Client
	RefData           *refdata.Loader
	RefCache          *cache.RefCache
	Sessions          *dashboard.Sessions
	Auth              *auth.Service
	ExportArchive     blob.Store
	ExportLimiter     *limits.ExportLimiter
	UpstreamHealth    *health.Monitor
	Observability     *observability.Provider
	ReportingLocation *time.Location

	workspaces map[string]workspaceEntry
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	locName := strings.TrimSpace(cfg.Reporting.Timezone)
	if locName == "" {
		locName = "UTC"
	}
	reportingLoc, err := time.LoadLocation(locName)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone: %w", err)
	}

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	authService, err := auth.NewService(ctx, cfg.Auth, redisClient)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	upstreamClient := upstream.NewClient(cfg.Upstream)
	upstreamClient.SetRecorder(obsProvider.RecordUpstreamRequest)
	refCache := cache.NewRefCache(redisClient, cfg.Upstream.RefCacheTTL)
	refLoader := refdata.NewLoader(upstreamClient, refCache, slog.Default())

	sessions := dashboard.NewSessions(
		redisClient,
		reportingLoc,
		cfg.Sessions.IdleTTL,
		cfg.Sessions.SweepInterval,
		cfg.Sessions.PersistTTL,
		slog.Default(),
	)

	var archive blob.Store
	if cfg.Exports.ArchiveEnabled {
		archive, err = blob.New(ctx, cfg.Exports)
		if err != nil {
			return nil, fmt.Errorf("init export archive: %w", err)
		}
	}

	return &Container{
		Config:            cfg,
		DBPool:            pool,
		Redis:             redisClient,
		Store:             store.New(pool),
		Upstream:          upstreamClient,
		RefData:           refLoader,
		RefCache:          refCache,
		Sessions:          sessions,
		Auth:              authService,
		ExportArchive:     archive,
		ExportLimiter:     limits.NewExportLimiter(redisClient),
		UpstreamHealth:    health.NewMonitor(upstreamClient.Ping, cfg.Upstream.HealthCheck),
		Observability:     obsProvider,
		ReportingLocation: reportingLoc,
	}, nil
}

// ReportingLoc returns the configured reporting timezone (defaults to UTC).
func (c *Container) ReportingLoc() *time.Location {
	if c != nil && c.ReportingLocation != nil {
		return c.ReportingLocation
	}
	return time.UTC
}
