package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	ItinerariesGeneratedTotal metric.Int64Counter
	ItineraryDurationSeconds  metric.Float64Histogram
	AdvisoryDegradedTotal     metric.Int64Counter
	RoutesComputedTotal       metric.Int64Counter
	ProviderFallbacksTotal    metric.Int64Counter
	CacheHitsTotal            metric.Int64Counter
	PoiDedupRatio             metric.Float64Histogram
	DbQueryDurationSeconds    metric.Float64Histogram
	DbQueryErrorsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripWeaver")
		var err error
		m := &AppMetrics{}

		m.ItinerariesGeneratedTotal, err = meter.Int64Counter(
			"itineraries_generated_total",
			metric.WithDescription("Total number of itineraries generated"),
			metric.WithUnit("{itinerary}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itineraries_generated_total: %v", err)
		}

		m.ItineraryDurationSeconds, err = meter.Float64Histogram(
			"itinerary_duration_seconds",
			metric.WithDescription("End-to-end itinerary generation duration in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_duration_seconds: %v", err)
		}

		m.AdvisoryDegradedTotal, err = meter.Int64Counter(
			"advisory_degraded_total",
			metric.WithDescription("Itineraries served with rule-based advisory fallbacks"),
			metric.WithUnit("{itinerary}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create advisory_degraded_total: %v", err)
		}

		m.RoutesComputedTotal, err = meter.Int64Counter(
			"routes_computed_total",
			metric.WithDescription("Routes computed by an upstream provider, cache misses only"),
			metric.WithUnit("{route}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create routes_computed_total: %v", err)
		}

		m.ProviderFallbacksTotal, err = meter.Int64Counter(
			"provider_fallbacks_total",
			metric.WithDescription("Times a routing or POI provider failed over to the next one"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_fallbacks_total: %v", err)
		}

		m.CacheHitsTotal, err = meter.Int64Counter(
			"cache_hits_total",
			metric.WithDescription("Cache hits across all namespaces"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_hits_total: %v", err)
		}

		m.PoiDedupRatio, err = meter.Float64Histogram(
			"poi_dedup_ratio",
			metric.WithDescription("Fraction of raw POI candidates removed by cross-provider dedup"),
			metric.WithUnit("1"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create poi_dedup_ratio: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, initializing
// the instruments against the global MeterProvider on first use.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
