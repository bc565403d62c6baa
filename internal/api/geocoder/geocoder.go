package geocoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhymeas/tripweaver/internal/cache"
	"github.com/rhymeas/tripweaver/internal/types"
)

const geocodeTTL = 30 * 24 * time.Hour

// Candidate is one geocoder match with the provider's confidence score.
type Candidate struct {
	Waypoint   types.Waypoint `json:"waypoint"`
	Importance float64        `json:"importance"`
}

// Provider resolves a free-text place name to zero or more candidates.
type Provider interface {
	Search(ctx context.Context, name string) ([]Candidate, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service resolves place names into immutable waypoints.
type Service interface {
	Resolve(ctx context.Context, name string) (types.Waypoint, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	provider Provider
	store    cache.Store
}

func NewService(provider Provider, store cache.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, provider: provider, store: store}
}

// Resolve geocodes name. When the provider returns several candidates whose
// confidence is too close to call, the ambiguity is surfaced to the caller
// for disambiguation rather than guessed.
func (s *ServiceImpl) Resolve(ctx context.Context, name string) (types.Waypoint, error) {
	ctx, span := otel.Tracer("Geocoder").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("place.name", name),
	))
	defer span.End()

	normalized := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if normalized == "" {
		return types.Waypoint{}, fmt.Errorf("place name must not be empty")
	}

	key := cache.Key(normalized)
	var cached types.Waypoint
	if cache.GetJSON(ctx, s.store, cache.NamespaceGeocode, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	candidates, err := s.provider.Search(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoder provider failed")
		return types.Waypoint{}, fmt.Errorf("geocode %q: %w", name, err)
	}
	if len(candidates) == 0 {
		err := fmt.Errorf("geocode %q: no results", name)
		span.RecordError(err)
		return types.Waypoint{}, err
	}

	if ambiguous(candidates) {
		s.logger.WarnContext(ctx, "ambiguous geocode result",
			slog.String("name", name), slog.Int("candidates", len(candidates)))
		span.SetStatus(codes.Error, "ambiguous location")
		return types.Waypoint{}, &AmbiguityError{Name: name, Candidates: candidates}
	}

	wp := candidates[0].Waypoint
	if err := cache.SetJSON(ctx, s.store, cache.NamespaceGeocode, key, wp, geocodeTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache geocode result", slog.Any("error", err))
	}

	span.SetAttributes(
		attribute.Float64("waypoint.lat", wp.Latitude),
		attribute.Float64("waypoint.lon", wp.Longitude),
		attribute.String("waypoint.country", wp.CountryCode),
	)
	span.SetStatus(codes.Ok, "resolved")
	return wp, nil
}

// ambiguous reports whether the runner-up is both nearly as plausible as the
// top match and geographically somewhere else entirely.
func ambiguous(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	top, second := candidates[0], candidates[1]
	if second.Importance < 0.9*top.Importance {
		return false
	}
	return types.DistanceKm(top.Waypoint.Point(), second.Waypoint.Point()) > 50
}

// AmbiguityError satisfies errors.Is(err, types.ErrAmbiguousLocation) and
// carries the candidates so callers can present a disambiguation choice.
type AmbiguityError struct {
	Name       string
	Candidates []Candidate
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous location %q: %d candidates", e.Name, len(e.Candidates))
}

func (e *AmbiguityError) Unwrap() error { return types.ErrAmbiguousLocation }
