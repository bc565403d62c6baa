package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rhymeas/tripweaver/app/observability/metrics"
	"github.com/rhymeas/tripweaver/internal/api/advisory"
	"github.com/rhymeas/tripweaver/internal/api/detour"
	"github.com/rhymeas/tripweaver/internal/api/geocoder"
	"github.com/rhymeas/tripweaver/internal/api/poi"
	"github.com/rhymeas/tripweaver/internal/api/ranking"
	"github.com/rhymeas/tripweaver/internal/api/routing"
	"github.com/rhymeas/tripweaver/internal/api/segmentation"
	"github.com/rhymeas/tripweaver/internal/types"
)

const (
	// defaultTopKPerDay bounds how many ranked POIs each day carries.
	defaultTopKPerDay = 5

	// defaultPOILimit bounds raw candidates per segment before ranking.
	defaultPOILimit = 30

	// preAdvisoryDeadline caps the blocking part of the pipeline. Advisory
	// enhancement runs after a base result exists and is not under it.
	preAdvisoryDeadline = 10 * time.Second

	maxSearchRadiusKm = 50.0
)

var _ Service = (*ServiceImpl)(nil)

// Service turns a TripContext into a day-by-day itinerary.
type Service interface {
	Generate(ctx context.Context, trip types.TripContext) (*types.Itinerary, error)
	GenerateStream(ctx context.Context, trip types.TripContext, eventCh chan<- types.StreamEvent) error
}

type ServiceImpl struct {
	logger     *slog.Logger
	geocoder   geocoder.Service
	router     routing.Client
	segmenter  segmentation.Engine
	aggregator poi.Aggregator
	scorer     detour.Scorer
	ranker     ranking.Ranker
	advisor    advisory.Service
	topK       int
	deadline   time.Duration
	dailyHours float64
}

// Option overrides an engine tuning knob on a Service.
type Option func(*ServiceImpl)

// WithTopKPerDay sets how many ranked POIs each day keeps.
func WithTopKPerDay(k int) Option {
	return func(s *ServiceImpl) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithPipelineDeadline sets the deadline on the blocking pipeline stages.
func WithPipelineDeadline(d time.Duration) Option {
	return func(s *ServiceImpl) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// WithDailyDrivingHours sets the daily driving budget used when the trip
// does not specify one.
func WithDailyDrivingHours(hours float64) Option {
	return func(s *ServiceImpl) {
		if hours > 0 {
			s.dailyHours = hours
		}
	}
}

func NewService(
	geo geocoder.Service,
	router routing.Client,
	segmenter segmentation.Engine,
	aggregator poi.Aggregator,
	scorer detour.Scorer,
	ranker ranking.Ranker,
	advisor advisory.Service,
	logger *slog.Logger,
	opts ...Option,
) *ServiceImpl {
	s := &ServiceImpl{
		logger:     logger,
		geocoder:   geo,
		router:     router,
		segmenter:  segmenter,
		aggregator: aggregator,
		scorer:     scorer,
		ranker:     ranker,
		advisor:    advisor,
		topK:       defaultTopKPerDay,
		deadline:   preAdvisoryDeadline,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the whole pipeline synchronously and returns the enhanced
// itinerary. Advisory failures degrade the result instead of failing it.
func (s *ServiceImpl) Generate(ctx context.Context, trip types.TripContext) (*types.Itinerary, error) {
	return s.generate(ctx, trip, nil)
}

// GenerateStream runs the pipeline while emitting progressive-update events
// on eventCh in stage order. The channel is closed when generation ends.
func (s *ServiceImpl) GenerateStream(ctx context.Context, trip types.TripContext, eventCh chan<- types.StreamEvent) error {
	defer close(eventCh)
	_, err := s.generate(ctx, trip, eventCh)
	return err
}

func (s *ServiceImpl) generate(ctx context.Context, trip types.TripContext, eventCh chan<- types.StreamEvent) (*types.Itinerary, error) {
	start := time.Now()
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("trip.origin", trip.Origin),
		attribute.String("trip.destination", trip.Destination),
		attribute.String("trip.mode", string(trip.TransportMode)),
	))
	defer span.End()

	if trip.TransportMode == "" {
		trip.TransportMode = types.ProfileDriving
	}
	if trip.MaxDrivingHoursPerDay <= 0 {
		trip.MaxDrivingHoursPerDay = s.dailyHours
	}

	var skipped []string

	// The blocking stages run under a hard deadline; advisory enhancement
	// afterwards is bounded only by the caller's context.
	baseCtx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	waypoints, err := s.resolveWaypoints(baseCtx, trip)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, err
	}

	route, err := s.router.GetRoute(baseCtx, waypoints, trip.TransportMode, trip.RoutePreference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing failed")
		return nil, fmt.Errorf("route %s -> %s: %w", trip.Origin, trip.Destination, err)
	}

	segments, err := s.segmenter.Segment(route, trip.MaxDrivingHoursPerDay, trip.StartDate)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("segment route: %w", err)
	}
	span.SetAttributes(attribute.Int("segments.count", len(segments)))

	plan, degraded := s.advisor.Strategy(baseCtx, trip, len(segments))
	if degraded {
		skipped = append(skipped, "strategy")
	}
	emit(eventCh, types.StreamEvent{Stage: types.StageStrategy, Payload: plan})
	emit(eventCh, types.StreamEvent{Stage: types.StageRoutes, Payload: segments})

	perSegment, err := s.collectPOIs(baseCtx, trip, segments, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poi aggregation failed")
		return nil, err
	}
	emit(eventCh, types.StreamEvent{Stage: types.StagePOIs, Payload: perSegment})

	ranked := s.enrichAndRank(baseCtx, trip, segments, perSegment)
	days := composeDays(segments, ranked, s.topK)
	base := s.assemble(trip, route, days, plan, skipped)
	emit(eventCh, types.StreamEvent{Stage: types.StageRanked, Payload: base})

	// Advisory enhancement: validation then gap-fill. The enhanced result
	// supersedes the base, never the reverse.
	validated, degradedValidation := s.advisor.Validate(ctx, ranked, trip)
	if degradedValidation {
		skipped = append(skipped, "validation")
	}
	days = composeDays(segments, validated, s.topK)

	if gaps := detectGaps(days); len(gaps) > 0 {
		fills, degradedFill := s.advisor.FillGaps(ctx, gaps, trip, days)
		if degradedFill {
			skipped = append(skipped, "gap-fill")
		}
		attachGapFills(days, fills)
	}

	enhanced := s.assemble(trip, route, days, plan, skipped)
	emit(eventCh, types.StreamEvent{Stage: types.StageAdvisoryComplete, Payload: enhanced})

	metrics.Get().ItinerariesGeneratedTotal.Add(ctx, 1)
	metrics.Get().ItineraryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if enhanced.Degraded {
		metrics.Get().AdvisoryDegradedTotal.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Int("days.count", len(enhanced.Days)),
		attribute.Bool("degraded", enhanced.Degraded),
	)
	span.SetStatus(codes.Ok, "itinerary generated")
	return enhanced, nil
}

func (s *ServiceImpl) resolveWaypoints(ctx context.Context, trip types.TripContext) ([]types.Waypoint, error) {
	names := make([]string, 0, len(trip.IntermediateStops)+2)
	names = append(names, trip.Origin)
	names = append(names, trip.IntermediateStops...)
	names = append(names, trip.Destination)

	waypoints := make([]types.Waypoint, len(names))
	for i, name := range names {
		wp, err := s.geocoder.Resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", name, err)
		}
		waypoints[i] = wp
	}
	return waypoints, nil
}

// collectPOIs fans out one aggregator call per segment concurrently.
// Different segments are independent; failures of a single segment are
// absorbed as an empty result.
func (s *ServiceImpl) collectPOIs(ctx context.Context, trip types.TripContext, segments []types.RouteSegment, plan advisory.StrategyPlan) ([][]types.POICandidate, error) {
	perSegment := make([][]types.POICandidate, len(segments))
	failures := make([]bool, len(segments))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		g.Go(func() error {
			categories := []string(nil)
			if i < len(plan.CategoriesPerDay) {
				categories = plan.CategoriesPerDay[i]
			}
			area := segmentSearchArea(seg, plan.SearchRadiusKm)
			candidates, err := s.aggregator.FindPOIs(groupCtx, area, categories, defaultPOILimit, seg.StartWaypoint.CountryCode)
			if err != nil {
				s.logger.WarnContext(groupCtx, "poi aggregation failed for segment",
					slog.Int("day", seg.DayIndex), slog.Any("error", err))
				failures[i] = true
				return nil
			}
			perSegment[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allFailed := len(segments) > 0
	for _, failed := range failures {
		allFailed = allFailed && failed
	}
	if allFailed {
		return nil, fmt.Errorf("poi aggregation failed for every segment: %w", types.ErrProviderUnavailable)
	}
	return perSegment, nil
}

// segmentSearchArea covers the segment's path with a circle centered on its
// middle vertex.
func segmentSearchArea(seg types.RouteSegment, radiusKm float64) poi.SearchArea {
	center := seg.Geometry[len(seg.Geometry)/2]
	chord := types.DistanceKm(seg.Geometry[0], seg.Geometry[len(seg.Geometry)-1])
	r := chord/2 + radiusKm
	if r > maxSearchRadiusKm {
		r = maxSearchRadiusKm
	}
	if r <= 0 {
		r = 15
	}
	return poi.SearchArea{Center: center, RadiusKm: r}
}

func (s *ServiceImpl) enrichAndRank(ctx context.Context, trip types.TripContext, segments []types.RouteSegment, perSegment [][]types.POICandidate) []types.RankedPOI {
	var ranked []types.RankedPOI
	for i, candidates := range perSegment {
		if len(candidates) == 0 {
			continue
		}
		enriched := s.scorer.Enrich(ctx, candidates, segments[i].Geometry, trip.TransportMode, trip.InterestTags)
		ranked = append(ranked, s.ranker.Rank(enriched, trip.InterestTags, timeHint(segments[i]))...)
	}
	return ranked
}

// timeHint derives the ranking time-slot hint from when the day's driving
// starts.
func timeHint(seg types.RouteSegment) types.TimeSlot {
	switch h := seg.DepartureTimeEstimate.Hour(); {
	case h < 12:
		return types.SlotMorning
	case h < 17:
		return types.SlotAfternoon
	default:
		return types.SlotEvening
	}
}

func (s *ServiceImpl) assemble(trip types.TripContext, route *types.RouteResult, days []types.ItineraryDay, plan advisory.StrategyPlan, skipped []string) *types.Itinerary {
	if len(days) > 0 && len(plan.Tips) > 0 {
		days[0].Tips = plan.Tips
	}
	return &types.Itinerary{
		ID:                  uuid.New(),
		Context:             trip,
		Days:                days,
		TotalDistanceKm:     route.DistanceKm,
		TotalDrivingHours:   route.DurationHours,
		Degraded:            len(skipped) > 0,
		SkippedEnhancements: skipped,
		GeneratedAt:         time.Now().UTC(),
	}
}

func emit(eventCh chan<- types.StreamEvent, event types.StreamEvent) {
	if eventCh == nil {
		return
	}
	eventCh <- event
}
