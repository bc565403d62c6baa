package border

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rhymeas/tripweaver/internal/cache"
	"github.com/rhymeas/tripweaver/internal/types"
)

const countryTTL = 30 * 24 * time.Hour

// Lookup resolves a coordinate to an ISO-3166 alpha-2 country code.
type Lookup interface {
	CountryOf(ctx context.Context, p types.GeoPoint) (string, error)
}

var _ Guard = (*GuardImpl)(nil)

// Guard rejects waypoint and POI candidates whose administrative country
// differs from the trip's. Lookups are cached on rounded coordinates so a
// cluster of nearby candidates costs a single reverse-geocode call.
type Guard interface {
	CountryOf(ctx context.Context, p types.GeoPoint) (string, error)
	SameCountry(ctx context.Context, p types.GeoPoint, expected string) bool
}

type GuardImpl struct {
	logger *slog.Logger
	lookup Lookup
	store  cache.Store
}

func NewGuard(lookup Lookup, store cache.Store, logger *slog.Logger) *GuardImpl {
	return &GuardImpl{logger: logger, lookup: lookup, store: store}
}

// cacheKey rounds to 4 decimals (~11 m) so neighbouring lookups collapse
// onto one entry without ever straddling a border meaningfully.
func cacheKey(p types.GeoPoint) string {
	return fmt.Sprintf("%.4f:%.4f", p.Latitude, p.Longitude)
}

func (g *GuardImpl) CountryOf(ctx context.Context, p types.GeoPoint) (string, error) {
	ctx, span := otel.Tracer("BorderGuard").Start(ctx, "CountryOf")
	defer span.End()

	key := cacheKey(p)
	var code string
	if cache.GetJSON(ctx, g.store, cache.NamespaceCountry, key, &code) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return code, nil
	}

	code, err := g.lookup.CountryOf(ctx, p)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("country lookup (%.4f, %.4f): %w", p.Latitude, p.Longitude, err)
	}
	if err := cache.SetJSON(ctx, g.store, cache.NamespaceCountry, key, code, countryTTL); err != nil {
		g.logger.WarnContext(ctx, "failed to cache country lookup", slog.Any("error", err))
	}
	span.SetAttributes(attribute.String("country.code", code))
	return code, nil
}

// SameCountry reports whether p resolves to expected. A failed lookup keeps
// the candidate: dropping real stops over a transient geo-lookup error is
// worse than letting one borderline candidate through.
func (g *GuardImpl) SameCountry(ctx context.Context, p types.GeoPoint, expected string) bool {
	code, err := g.CountryOf(ctx, p)
	if err != nil {
		g.logger.WarnContext(ctx, "border check skipped, lookup failed", slog.Any("error", err))
		return true
	}
	return code == expected
}
