package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/rhymeas/tripweaver/app/db"
	"github.com/rhymeas/tripweaver/config"
	"github.com/rhymeas/tripweaver/internal/api/advisory"
	"github.com/rhymeas/tripweaver/internal/api/border"
	"github.com/rhymeas/tripweaver/internal/api/detour"
	"github.com/rhymeas/tripweaver/internal/api/geocoder"
	"github.com/rhymeas/tripweaver/internal/api/itinerary"
	"github.com/rhymeas/tripweaver/internal/api/poi"
	"github.com/rhymeas/tripweaver/internal/api/ranking"
	"github.com/rhymeas/tripweaver/internal/api/routing"
	"github.com/rhymeas/tripweaver/internal/api/segmentation"
	"github.com/rhymeas/tripweaver/internal/cache"
)

const (
	providerTimeout = 4 * time.Second

	localCacheTTL     = 30 * time.Minute
	localCacheCleanup = 10 * time.Minute
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	Cache            cache.Store
	ItineraryService itinerary.Service
	ItineraryHandler *itinerary.HandlerImpl
}

// NewContainer initializes and returns a new dependency container.
// Postgres, Redis and the Gemini client are all optional: the engine runs
// degraded without them.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	store := buildCache(ctx, cfg, logger)

	userAgent := cfg.Providers.UserAgent
	if userAgent == "" {
		userAgent = "tripweaver/1.0"
	}

	// Geocoding and country lookups share the Nominatim instance.
	geoProvider := geocoder.NewNominatimProvider(cfg.Providers.Nominatim.BaseURL, userAgent, providerTimeout)
	geoService := geocoder.NewService(geoProvider, store, logger)

	guard := border.NewGuard(
		border.NewReverseGeocodeLookup(cfg.Providers.Nominatim.BaseURL, userAgent, providerTimeout),
		store, logger,
	)

	routeProviders := []routing.Provider{
		routing.NewOSRMProvider(cfg.Providers.OSRM.BaseURL, providerTimeout),
	}
	if cfg.Providers.ORS.APIKey != "" {
		ors, err := routing.NewORSProvider(cfg.Providers.ORS.BaseURL, cfg.Providers.ORS.APIKey, providerTimeout)
		if err != nil {
			logger.Warn("Skipping OpenRouteService provider", slog.Any("error", err))
		} else {
			routeProviders = append(routeProviders, ors)
		}
	}
	router := routing.NewClient(routeProviders, store, guard, logger)

	var poiProviders []poi.Provider
	if cfg.Providers.OpenTripMap.APIKey != "" {
		poiProviders = append(poiProviders,
			poi.NewOpenTripMapProvider(cfg.Providers.OpenTripMap.BaseURL, cfg.Providers.OpenTripMap.APIKey, providerTimeout))
	}
	if cfg.Providers.Geoapify.APIKey != "" {
		poiProviders = append(poiProviders,
			poi.NewGeoapifyProvider(cfg.Providers.Geoapify.BaseURL, cfg.Providers.Geoapify.APIKey, providerTimeout))
	}
	aggregator := poi.NewAggregator(poiProviders, store, guard, logger)

	advisor := advisory.NewService(buildGenerator(ctx, cfg, logger), store, logger)

	service := itinerary.NewService(
		geoService,
		router,
		segmentation.NewEngine(logger),
		aggregator,
		detour.NewScorer(router, logger),
		ranking.NewRanker(logger),
		advisor,
		logger,
		itinerary.WithTopKPerDay(cfg.Engine.TopPOIsPerDay),
		itinerary.WithPipelineDeadline(cfg.Engine.PipelineDeadline),
		itinerary.WithDailyDrivingHours(cfg.Engine.MaxDrivingHoursPerDay),
	)

	c := &Container{
		Config:           cfg,
		Logger:           logger,
		Cache:            store,
		ItineraryService: service,
	}

	var repo itinerary.Repository
	if cfg.Repositories.Postgres.Enabled {
		pool, err := buildPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		repo = itinerary.NewRepository(pool, logger)
	}
	c.ItineraryHandler = itinerary.NewHandler(service, repo, logger)
	return c, nil
}

// Close releases pooled resources.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Warn("Failed to close cache", slog.Any("error", err))
		}
	}
}

func buildCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Store {
	local := cache.NewMemory(localCacheTTL, localCacheCleanup)
	if !cfg.Repositories.Redis.Enabled {
		return local
	}
	shared, err := cache.NewRedis(ctx, cfg.Repositories.Redis.Addr, cfg.Repositories.Redis.Password, cfg.Repositories.Redis.DB, logger)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory cache only", slog.Any("error", err))
		return local
	}
	return cache.NewTiered(local, shared)
}

func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) advisory.Generator {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, advisory runs on rule-based fallbacks")
		return nil
	}
	client, err := advisory.NewAIClient(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		logger.Warn("Failed to initialize Gemini client, advisory runs on rule-based fallbacks", slog.Any("error", err))
		return nil
	}
	return client
}

func buildPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return nil, err
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, fmt.Errorf("database not ready after retries")
	}
	return pool, nil
}
