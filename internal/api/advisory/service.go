package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhymeas/tripweaver/internal/cache"
	"github.com/rhymeas/tripweaver/internal/types"
)

const (
	strategyTTL   = 72 * time.Hour
	validationTTL = 72 * time.Hour
	gapFillTTL    = 24 * time.Hour
)

// StrategyPlan is the advisory proposal for where to look for POIs.
type StrategyPlan struct {
	CategoriesPerDay [][]string `json:"categories_per_day"`
	SearchRadiusKm   float64    `json:"search_radius_km"`
	Tips             []string   `json:"tips,omitempty"`
}

var _ Service = (*ServiceImpl)(nil)

// Service is the language-model-backed enhancement layer. Every call
// degrades gracefully to a rule-based default; the second return value
// reports whether that fallback was used. Advisory failure never fails
// itinerary generation.
type Service interface {
	Strategy(ctx context.Context, trip types.TripContext, days int) (StrategyPlan, bool)
	Validate(ctx context.Context, pois []types.RankedPOI, trip types.TripContext) ([]types.RankedPOI, bool)
	FillGaps(ctx context.Context, gaps []types.Gap, trip types.TripContext, days []types.ItineraryDay) ([]types.GapFill, bool)
}

type ServiceImpl struct {
	logger    *slog.Logger
	generator Generator
	store     cache.Store
}

// NewService builds the advisory layer. generator may be nil when no API key
// is configured; every call then uses its rule-based default.
func NewService(generator Generator, store cache.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, generator: generator, store: store}
}

// tripKey hashes the structural fields of a TripContext.
func tripKey(trip types.TripContext) string {
	return cache.Key(
		trip.Origin, trip.Destination, strings.Join(trip.IntermediateStops, ","),
		string(trip.TransportMode), string(trip.BudgetTier),
		strings.Join(trip.InterestTags, ","),
		fmt.Sprintf("%.1f", trip.MaxDrivingHoursPerDay),
	)
}

func (s *ServiceImpl) Strategy(ctx context.Context, trip types.TripContext, days int) (StrategyPlan, bool) {
	ctx, span := otel.Tracer("AdvisoryService").Start(ctx, "Strategy")
	defer span.End()

	key := cache.Key("strategy", tripKey(trip), fmt.Sprintf("%d", days))
	var cached StrategyPlan
	if cache.GetJSON(ctx, s.store, cache.NamespaceAdvisory, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, false
	}

	if s.generator == nil {
		return s.fallbackStrategy(trip, days), true
	}

	raw, err := s.generator.GenerateJSON(ctx, strategyPrompt(trip, days))
	if err != nil {
		s.degrade(ctx, span, "strategy", err)
		return s.fallbackStrategy(trip, days), true
	}

	var payload strategyPayload
	if err := parseJSON(raw, &payload); err != nil {
		s.degrade(ctx, span, "strategy", err)
		return s.fallbackStrategy(trip, days), true
	}

	plan := StrategyPlan{
		CategoriesPerDay: make([][]string, days),
		SearchRadiusKm:   payload.SearchRadiusKm,
		Tips:             payload.Tips,
	}
	for _, d := range payload.Days {
		if d.DayIndex >= 0 && d.DayIndex < days {
			plan.CategoriesPerDay[d.DayIndex] = d.Categories
		}
	}
	fallback := s.fallbackStrategy(trip, days)
	for i := range plan.CategoriesPerDay {
		if len(plan.CategoriesPerDay[i]) == 0 {
			plan.CategoriesPerDay[i] = fallback.CategoriesPerDay[i]
		}
	}
	if plan.SearchRadiusKm <= 0 || plan.SearchRadiusKm > 100 {
		plan.SearchRadiusKm = fallback.SearchRadiusKm
	}

	if err := cache.SetJSON(ctx, s.store, cache.NamespaceAdvisory, key, plan, strategyTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache strategy", slog.Any("error", err))
	}
	span.SetStatus(codes.Ok, "strategy generated")
	return plan, false
}

// interestCategories maps traveler interest tags to provider category
// vocabularies for the rule-based strategy.
var interestCategories = map[string][]string{
	"nature":       {"natural", "gardens_and_parks"},
	"history":      {"historic", "monuments_and_memorials"},
	"culture":      {"museums", "cultural", "theatres_and_entertainments"},
	"food":         {"foods", "restaurants"},
	"architecture": {"architecture", "churches"},
	"adventure":    {"sport", "natural"},
	"beaches":      {"beaches"},
}

var defaultCategories = []string{"interesting_places", "natural", "foods"}

func (s *ServiceImpl) fallbackStrategy(trip types.TripContext, days int) StrategyPlan {
	categories := make([]string, 0, 4)
	seen := map[string]struct{}{}
	for _, tag := range trip.InterestTags {
		for _, cat := range interestCategories[strings.ToLower(strings.TrimSpace(tag))] {
			if _, ok := seen[cat]; !ok {
				seen[cat] = struct{}{}
				categories = append(categories, cat)
			}
		}
	}
	if len(categories) == 0 {
		categories = defaultCategories
	}
	sort.Strings(categories)

	perDay := make([][]string, days)
	for i := range perDay {
		perDay[i] = categories
	}
	radius := 15.0
	if trip.TransportMode == types.ProfileCycling || trip.TransportMode == types.ProfileWalking {
		radius = 5.0
	}
	return StrategyPlan{CategoriesPerDay: perDay, SearchRadiusKm: radius}
}

func (s *ServiceImpl) Validate(ctx context.Context, pois []types.RankedPOI, trip types.TripContext) ([]types.RankedPOI, bool) {
	ctx, span := otel.Tracer("AdvisoryService").Start(ctx, "Validate")
	defer span.End()
	span.SetAttributes(attribute.Int("pois.count", len(pois)))

	if len(pois) == 0 {
		return pois, false
	}

	ids := make([]string, len(pois))
	for i, p := range pois {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	key := cache.Key("validate", strings.Join(ids, ","), tripKey(trip))

	var approved []string
	if !cache.GetJSON(ctx, s.store, cache.NamespaceAdvisory, key, &approved) {
		if s.generator == nil {
			return s.fallbackValidate(pois, trip), true
		}
		raw, err := s.generator.GenerateJSON(ctx, validationPrompt(pois, trip))
		if err != nil {
			s.degrade(ctx, span, "validation", err)
			return s.fallbackValidate(pois, trip), true
		}
		var payload validationPayload
		if err := parseJSON(raw, &payload); err != nil {
			s.degrade(ctx, span, "validation", err)
			return s.fallbackValidate(pois, trip), true
		}
		// An empty approval list from the model means it misread the task;
		// rejecting every stop is never the right plan.
		if len(payload.ApprovedIDs) == 0 {
			s.degrade(ctx, span, "validation", types.ErrSchemaViolation)
			return s.fallbackValidate(pois, trip), true
		}
		approved = payload.ApprovedIDs
		if err := cache.SetJSON(ctx, s.store, cache.NamespaceAdvisory, key, approved, validationTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache validation", slog.Any("error", err))
		}
	} else {
		span.SetAttributes(attribute.Bool("cache.hit", true))
	}

	approvedSet := make(map[string]struct{}, len(approved))
	for _, id := range approved {
		approvedSet[id] = struct{}{}
	}
	kept := make([]types.RankedPOI, 0, len(pois))
	for _, p := range pois {
		if _, ok := approvedSet[p.ID]; ok {
			kept = append(kept, p)
		}
	}
	span.SetAttributes(attribute.Int("pois.kept", len(kept)))
	span.SetStatus(codes.Ok, "validated")
	return kept, false
}

// fallbackValidate drops obviously inappropriate venue types for low-budget
// trips and keeps everything else.
func (s *ServiceImpl) fallbackValidate(pois []types.RankedPOI, trip types.TripContext) []types.RankedPOI {
	if trip.BudgetTier != types.BudgetLow {
		return pois
	}
	kept := make([]types.RankedPOI, 0, len(pois))
	for _, p := range pois {
		if hasAnyTag(p.POICandidate, "casino", "nightclub", "adult") {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func hasAnyTag(c types.POICandidate, needles ...string) bool {
	tags := append([]string{c.Category}, c.Kinds...)
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return true
			}
		}
	}
	return false
}

func (s *ServiceImpl) FillGaps(ctx context.Context, gaps []types.Gap, trip types.TripContext, days []types.ItineraryDay) ([]types.GapFill, bool) {
	ctx, span := otel.Tracer("AdvisoryService").Start(ctx, "FillGaps")
	defer span.End()
	span.SetAttributes(attribute.Int("gaps.count", len(gaps)))

	if len(gaps) == 0 {
		return nil, false
	}

	gapDescs := make([]string, len(gaps))
	for i, g := range gaps {
		gapDescs[i] = fmt.Sprintf("%d:%s", g.DayIndex, g.Kind)
	}
	key := cache.Key("gapfill", strings.Join(gapDescs, ";"), tripKey(trip))

	var fills []types.GapFill
	if cache.GetJSON(ctx, s.store, cache.NamespaceAdvisory, key, &fills) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return fills, false
	}

	if s.generator == nil {
		return fallbackGapFills(gaps, days), true
	}

	raw, err := s.generator.GenerateJSON(ctx, gapFillPrompt(gaps, trip, days))
	if err != nil {
		s.degrade(ctx, span, "gap-fill", err)
		return fallbackGapFills(gaps, days), true
	}
	var payload gapFillPayload
	if err := parseJSON(raw, &payload); err != nil {
		s.degrade(ctx, span, "gap-fill", err)
		return fallbackGapFills(gaps, days), true
	}

	fills = make([]types.GapFill, 0, len(payload.Suggestions))
	for _, sg := range payload.Suggestions {
		if sg.Name == "" {
			continue
		}
		fill := types.GapFill{
			DayIndex:    sg.DayIndex,
			Kind:        types.GapKind(sg.Kind),
			Name:        sg.Name,
			Category:    sg.Category,
			Description: sg.Description,
		}
		if sg.Latitude != 0 || sg.Longitude != 0 {
			fill.Coordinates = &types.GeoPoint{Latitude: sg.Latitude, Longitude: sg.Longitude}
		}
		fills = append(fills, fill)
	}
	if len(fills) == 0 {
		s.degrade(ctx, span, "gap-fill", types.ErrSchemaViolation)
		return fallbackGapFills(gaps, days), true
	}

	if err := cache.SetJSON(ctx, s.store, cache.NamespaceAdvisory, key, fills, gapFillTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache gap fills", slog.Any("error", err))
	}
	span.SetStatus(codes.Ok, "gaps filled")
	return fills, false
}

// fallbackGapFills produces generic, honest placeholders so the caller can
// still flag what the day is missing.
func fallbackGapFills(gaps []types.Gap, days []types.ItineraryDay) []types.GapFill {
	fills := make([]types.GapFill, 0, len(gaps))
	for _, g := range gaps {
		near := ""
		if g.DayIndex >= 0 && g.DayIndex < len(days) {
			near = days[g.DayIndex].Segment.EndWaypoint.Name
		}
		var fill types.GapFill
		switch g.Kind {
		case types.GapOvernight:
			fill = types.GapFill{Kind: g.Kind, Name: "Accommodation near " + near, Category: "accomodations"}
		case types.GapMeal:
			fill = types.GapFill{Kind: g.Kind, Name: "Restaurant near " + near, Category: "foods"}
		default:
			fill = types.GapFill{Kind: g.Kind, Name: "Activity near " + near, Category: "interesting_places"}
		}
		fill.DayIndex = g.DayIndex
		fill.Description = "suggested automatically; no advisory service available"
		fills = append(fills, fill)
	}
	return fills
}

func (s *ServiceImpl) degrade(ctx context.Context, span trace.Span, stage string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "degraded to rule-based default")
	s.logger.WarnContext(ctx, "advisory call degraded to rule-based default",
		slog.String("stage", stage), slog.Any("error", err))
}
