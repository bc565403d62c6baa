package detour

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/rhymeas/tripweaver/internal/api/routing"
	"github.com/rhymeas/tripweaver/internal/types"
)

const maxInFlightCalls = 6

// Fallback speeds for when the routing sub-call is unavailable and the
// detour has to be estimated from straight-line distance.
var fallbackSpeedKmh = map[types.TransportProfile]float64{
	types.ProfileDriving: 70,
	types.ProfileCycling: 16,
	types.ProfileWalking: 4.5,
}

var _ Scorer = (*ScorerImpl)(nil)

// Scorer computes, for each candidate POI, the extra time and distance of
// leaving the route to visit it, and classifies the visit itself.
type Scorer interface {
	Enrich(ctx context.Context, candidates []types.POICandidate, routeGeometry []types.GeoPoint, mode types.TransportProfile, interestTags []string) []types.EnrichedPOI
}

type ScorerImpl struct {
	logger *slog.Logger
	router routing.Client
	sem    *semaphore.Weighted
}

func NewScorer(router routing.Client, logger *slog.Logger) *ScorerImpl {
	return &ScorerImpl{
		logger: logger,
		router: router,
		sem:    semaphore.NewWeighted(maxInFlightCalls),
	}
}

// Enrich scores all candidates concurrently with a bounded worker pool. A
// failed enrichment is absorbed: the POI keeps an estimated detour rather
// than dropping out of the pipeline.
func (s *ScorerImpl) Enrich(ctx context.Context, candidates []types.POICandidate, routeGeometry []types.GeoPoint, mode types.TransportProfile, interestTags []string) []types.EnrichedPOI {
	ctx, span := otel.Tracer("DetourScorer").Start(ctx, "Enrich")
	defer span.End()
	span.SetAttributes(attribute.Int("pois.count", len(candidates)))

	enriched := make([]types.EnrichedPOI, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, c types.POICandidate) {
			defer wg.Done()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				enriched[i] = s.enrichOne(ctx, c, routeGeometry, mode, interestTags, true)
				return
			}
			defer s.sem.Release(1)
			enriched[i] = s.enrichOne(ctx, c, routeGeometry, mode, interestTags, false)
		}(i, candidate)
	}
	wg.Wait()
	return enriched
}

func (s *ScorerImpl) enrichOne(ctx context.Context, c types.POICandidate, routeGeometry []types.GeoPoint, mode types.TransportProfile, interestTags []string, estimateOnly bool) types.EnrichedPOI {
	detourKm, detourMinutes := s.scoreDetour(ctx, c, routeGeometry, mode, estimateOnly)

	minutes, experience, slot := classifyVisit(c)
	return types.EnrichedPOI{
		POICandidate:         c,
		DetourMinutes:        detourMinutes,
		DetourKm:             detourKm,
		WorthTheDetour:       worthIt(c, detourMinutes, interestTags),
		VisitDurationMinutes: minutes,
		ExperienceCategory:   experience,
		PreferredTimeSlot:    slot,
	}
}

// scoreDetour finds the closest route vertex to the POI and measures the
// extra cost of closest -> poi -> next vertex over the direct hop, using
// cached routing sub-calls. Falls back to a straight-line estimate when the
// sub-call fails.
func (s *ScorerImpl) scoreDetour(ctx context.Context, c types.POICandidate, routeGeometry []types.GeoPoint, mode types.TransportProfile, estimateOnly bool) (km, minutes float64) {
	idx, _ := types.NearestVertex(routeGeometry, c.Coordinates)
	if idx < 0 {
		return 0, 0
	}
	next := idx + 1
	if next >= len(routeGeometry) {
		next = idx
		idx--
		if idx < 0 {
			return 0, 0
		}
	}
	closest, following := routeGeometry[idx], routeGeometry[next]

	if !estimateOnly {
		outKm, outHours, errOut := s.router.Leg(ctx, closest, c.Coordinates, mode)
		backKm, backHours, errBack := s.router.Leg(ctx, c.Coordinates, following, mode)
		directKm, directHours, errDirect := s.router.Leg(ctx, closest, following, mode)
		if errOut == nil && errBack == nil && errDirect == nil {
			km = outKm + backKm - directKm
			minutes = (outHours + backHours - directHours) * 60
			if km < 0 {
				km = 0
			}
			if minutes < 0 {
				minutes = 0
			}
			return km, minutes
		}
		s.logger.DebugContext(ctx, "detour routing sub-call failed, estimating",
			slog.String("poi", c.Name))
	}

	// Straight-line estimate, doubled for the round trip off the route.
	offRoute := types.DistanceKm(closest, c.Coordinates)
	speed := fallbackSpeedKmh[mode]
	if speed == 0 {
		speed = fallbackSpeedKmh[types.ProfileDriving]
	}
	km = 2 * offRoute
	return km, km / speed * 60
}

// worthIt applies the graded detour verdict: a short detour is always worth
// it, a highly rated POI stretches the budget, and an interest-tag match
// sits in between.
func worthIt(c types.POICandidate, detourMinutes float64, interestTags []string) bool {
	switch {
	case detourMinutes < 10:
		return true
	case c.Rating >= 4.5 && detourMinutes < 20:
		return true
	case matchesInterests(c, interestTags) && detourMinutes < 15:
		return true
	default:
		return false
	}
}

func matchesInterests(c types.POICandidate, interestTags []string) bool {
	if len(interestTags) == 0 {
		return false
	}
	tags := make(map[string]struct{}, len(interestTags))
	for _, t := range interestTags {
		tags[normalizeTag(t)] = struct{}{}
	}
	if _, ok := tags[normalizeTag(c.Category)]; ok {
		return true
	}
	for _, k := range c.Kinds {
		if _, ok := tags[normalizeTag(k)]; ok {
			return true
		}
	}
	return false
}
