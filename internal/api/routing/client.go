package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhymeas/tripweaver/app/observability/metrics"
	"github.com/rhymeas/tripweaver/internal/api/border"
	"github.com/rhymeas/tripweaver/internal/cache"
	"github.com/rhymeas/tripweaver/internal/types"
)

const (
	routeTTL = 7 * 24 * time.Hour

	// endpointToleranceKm bounds how far a returned geometry's endpoints may
	// sit from the requested waypoints before the response counts as
	// malformed.
	endpointToleranceKm = 2.0

	// borderSampleCount vertices of a candidate geometry are country-checked
	// when selecting scenic/longest alternatives.
	borderSampleCount = 8
)

var _ Client = (*ClientImpl)(nil)

// Client computes routes with provider fallback and caching.
type Client interface {
	GetRoute(ctx context.Context, waypoints []types.Waypoint, profile types.TransportProfile, preference types.RoutePreference) (*types.RouteResult, error)
	Leg(ctx context.Context, from, to types.GeoPoint, profile types.TransportProfile) (distanceKm, durationHours float64, err error)
}

type ClientImpl struct {
	logger    *slog.Logger
	providers []Provider
	store     cache.Store
	guard     border.Guard
}

// NewClient builds a routing client. Providers are tried in the given
// priority order; the first success short-circuits the rest.
func NewClient(providers []Provider, store cache.Store, guard border.Guard, logger *slog.Logger) *ClientImpl {
	return &ClientImpl{
		logger:    logger,
		providers: providers,
		store:     store,
		guard:     guard,
	}
}

// routeCacheKey is content-addressed: sorted waypoint coordinates rounded to
// 5 decimals plus profile and preference.
func routeCacheKey(waypoints []types.Waypoint, profile types.TransportProfile, preference types.RoutePreference) string {
	coords := make([]string, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = fmt.Sprintf("%.5f,%.5f", wp.Latitude, wp.Longitude)
	}
	sort.Strings(coords)
	return cache.Key(strings.Join(coords, ";"), string(profile), string(preference))
}

func (c *ClientImpl) GetRoute(ctx context.Context, waypoints []types.Waypoint, profile types.TransportProfile, preference types.RoutePreference) (*types.RouteResult, error) {
	ctx, span := otel.Tracer("RoutingClient").Start(ctx, "GetRoute", trace.WithAttributes(
		attribute.Int("waypoints.count", len(waypoints)),
		attribute.String("profile", string(profile)),
		attribute.String("preference", string(preference)),
	))
	defer span.End()

	if len(waypoints) < 2 {
		return nil, fmt.Errorf("at least two waypoints required, got %d", len(waypoints))
	}
	if preference == "" {
		preference = types.PreferenceFastest
	}

	// Crossing a border intentionally is only acceptable when the user's own
	// endpoints already cross it; then the direct fastest route is returned.
	crossBorder := waypoints[0].CountryCode != "" &&
		waypoints[len(waypoints)-1].CountryCode != "" &&
		waypoints[0].CountryCode != waypoints[len(waypoints)-1].CountryCode
	effective := preference
	if crossBorder && preference != types.PreferenceFastest {
		c.logger.InfoContext(ctx, "endpoints cross a border, falling back to fastest route",
			slog.String("origin_country", waypoints[0].CountryCode),
			slog.String("destination_country", waypoints[len(waypoints)-1].CountryCode))
		span.SetAttributes(attribute.Bool("border.preference_skipped", true))
		effective = types.PreferenceFastest
	}

	key := routeCacheKey(waypoints, profile, effective)
	var cached types.RouteResult
	if cache.GetJSON(ctx, c.store, cache.NamespaceRoute, key, &cached) {
		cached.Provider = "cache"
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	wantAlternatives := effective == types.PreferenceScenic || effective == types.PreferenceLongest

	var lastErr error
	for _, provider := range c.providers {
		result, err := provider.GetRoute(ctx, RouteRequest{
			Waypoints:        waypoints,
			Profile:          profile,
			WantAlternatives: wantAlternatives,
		})
		if err != nil {
			if errors.Is(err, types.ErrNoRouteFound) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "no route found")
				return nil, err
			}
			c.logger.WarnContext(ctx, "routing provider failed, falling through",
				slog.String("provider", provider.Name()),
				slog.Bool("rate_limited", errors.Is(err, types.ErrRateLimited)),
				slog.Any("error", err))
			metrics.Get().ProviderFallbacksTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", "routing"), attribute.String("provider", provider.Name())))
			lastErr = err
			continue
		}
		if err := validateRoute(result, waypoints); err != nil {
			c.logger.WarnContext(ctx, "routing provider returned malformed route, falling through",
				slog.String("provider", provider.Name()), slog.Any("error", err))
			metrics.Get().ProviderFallbacksTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", "routing"), attribute.String("provider", provider.Name())))
			lastErr = fmt.Errorf("%w: %s: %v", types.ErrProviderUnavailable, provider.Name(), err)
			continue
		}

		switch effective {
		case types.PreferenceScenic:
			c.applyScenic(ctx, result)
		case types.PreferenceLongest:
			c.applyLongest(ctx, result)
		}
		result.AlternativeGeometries = nil

		if err := cache.SetJSON(ctx, c.store, cache.NamespaceRoute, key, result, routeTTL); err != nil {
			c.logger.WarnContext(ctx, "failed to cache route", slog.Any("error", err))
		}

		span.SetAttributes(
			attribute.String("route.provider", result.Provider),
			attribute.Float64("route.distance_km", result.DistanceKm),
			attribute.Float64("route.duration_hours", result.DurationHours),
		)
		span.SetStatus(codes.Ok, "route computed")
		metrics.Get().RoutesComputedTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", result.Provider)))
		return result, nil
	}

	span.SetStatus(codes.Error, "all routing providers failed")
	if lastErr == nil {
		lastErr = types.ErrProviderUnavailable
	}
	return nil, fmt.Errorf("all routing providers failed: %w", lastErr)
}

// Leg returns distance and duration of a direct hop between two points.
// Used by the detour scorer; hits the same route cache.
func (c *ClientImpl) Leg(ctx context.Context, from, to types.GeoPoint, profile types.TransportProfile) (float64, float64, error) {
	result, err := c.GetRoute(ctx, []types.Waypoint{
		{Latitude: from.Latitude, Longitude: from.Longitude},
		{Latitude: to.Latitude, Longitude: to.Longitude},
	}, profile, types.PreferenceFastest)
	if err != nil {
		return 0, 0, err
	}
	return result.DistanceKm, result.DurationHours, nil
}

// validateRoute enforces the RouteResult invariants before a provider
// response is trusted.
func validateRoute(result *types.RouteResult, waypoints []types.Waypoint) error {
	if result.DistanceKm <= 0 {
		return fmt.Errorf("non-positive distance %f", result.DistanceKm)
	}
	if len(result.Geometry) == 0 {
		return errors.New("empty geometry")
	}
	first, last := result.Geometry[0], result.Geometry[len(result.Geometry)-1]
	if d := types.DistanceKm(first, waypoints[0].Point()); d > endpointToleranceKm {
		return fmt.Errorf("geometry starts %.1f km from origin", d)
	}
	if d := types.DistanceKm(last, waypoints[len(waypoints)-1].Point()); d > endpointToleranceKm {
		return fmt.Errorf("geometry ends %.1f km from destination", d)
	}
	return nil
}

type routeOption struct {
	geometry      []types.GeoPoint
	distanceKm    float64
	durationHours float64
}

func options(result *types.RouteResult) []routeOption {
	opts := []routeOption{{
		geometry:      result.Geometry,
		distanceKm:    result.DistanceKm,
		durationHours: result.DurationHours,
	}}
	for _, alt := range result.AlternativeGeometries {
		if len(alt.Geometry) == 0 || alt.DistanceKm <= 0 {
			continue
		}
		opts = append(opts, routeOption{
			geometry:      alt.Geometry,
			distanceKm:    alt.DistanceKm,
			durationHours: alt.DurationHours,
		})
	}
	return opts
}

func adopt(result *types.RouteResult, opt routeOption) {
	result.Geometry = opt.geometry
	result.DistanceKm = opt.distanceKm
	result.DurationHours = opt.durationHours
}

// applyScenic picks the alternative maximizing a winding-road heuristic
// among candidates that stay inside the trip's country.
func (c *ClientImpl) applyScenic(ctx context.Context, result *types.RouteResult) {
	country := result.Waypoints[0].CountryCode
	primary := options(result)[0]

	best := primary
	bestScore := math.Inf(-1)
	for i, opt := range options(result) {
		// The primary route already passed validation; alternatives must
		// additionally stay in-country.
		if i > 0 && !c.staysInCountry(ctx, opt.geometry, country) {
			continue
		}
		score := scenicScore(opt, primary)
		if score > bestScore {
			best = opt
			bestScore = score
		}
	}
	adopt(result, best)
}

// scenicScore rewards sinuosity (winding roads over straight chords) and
// penalizes impractically slow candidates.
func scenicScore(opt, primary routeOption) float64 {
	chord := types.DistanceKm(opt.geometry[0], opt.geometry[len(opt.geometry)-1])
	if chord < 0.1 {
		chord = 0.1
	}
	sinuosity := opt.distanceKm / chord
	if sinuosity > 2.5 {
		sinuosity = 2.5
	}
	score := sinuosity
	if primary.durationHours > 0 && opt.durationHours > 1.8*primary.durationHours {
		score -= 1.0
	}
	return score
}

// applyLongest picks the alternative with the second-highest distance,
// skipping the most extreme outlier, among in-country candidates.
func (c *ClientImpl) applyLongest(ctx context.Context, result *types.RouteResult) {
	country := result.Waypoints[0].CountryCode
	opts := options(result)

	eligible := opts[:1:1]
	for _, opt := range opts[1:] {
		if c.staysInCountry(ctx, opt.geometry, country) {
			eligible = append(eligible, opt)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].distanceKm > eligible[j].distanceKm
	})
	if len(eligible) >= 2 {
		adopt(result, eligible[1])
		return
	}
	adopt(result, eligible[0])
}

// staysInCountry samples vertices along the geometry and checks each against
// the border guard's cached country lookup.
func (c *ClientImpl) staysInCountry(ctx context.Context, geometry []types.GeoPoint, country string) bool {
	if country == "" || len(geometry) == 0 {
		return true
	}
	step := len(geometry) / borderSampleCount
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(geometry); i += step {
		if !c.guard.SameCountry(ctx, geometry[i], country) {
			return false
		}
	}
	return c.guard.SameCountry(ctx, geometry[len(geometry)-1], country)
}
