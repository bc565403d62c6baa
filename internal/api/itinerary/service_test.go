package itinerary

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rhymeas/tripweaver/internal/api/advisory"
	"github.com/rhymeas/tripweaver/internal/api/poi"
	"github.com/rhymeas/tripweaver/internal/types"
)

// MockGeocoder is a mock implementation of geocoder.Service
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Resolve(ctx context.Context, name string) (types.Waypoint, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(types.Waypoint), args.Error(1)
}

// MockRouter is a mock implementation of routing.Client
type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) GetRoute(ctx context.Context, waypoints []types.Waypoint, profile types.TransportProfile, preference types.RoutePreference) (*types.RouteResult, error) {
	args := m.Called(ctx, waypoints, profile, preference)
	if r := args.Get(0); r != nil {
		return r.(*types.RouteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRouter) Leg(ctx context.Context, from, to types.GeoPoint, profile types.TransportProfile) (float64, float64, error) {
	args := m.Called(ctx, from, to, profile)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

// MockSegmenter is a mock implementation of segmentation.Engine
type MockSegmenter struct {
	mock.Mock
}

func (m *MockSegmenter) Segment(route *types.RouteResult, maxDrivingHoursPerDay float64, startDate time.Time) ([]types.RouteSegment, error) {
	args := m.Called(route, maxDrivingHoursPerDay, startDate)
	if s := args.Get(0); s != nil {
		return s.([]types.RouteSegment), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAggregator is a mock implementation of poi.Aggregator
type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) FindPOIs(ctx context.Context, area poi.SearchArea, categories []string, limit int, expectedCountry string) ([]types.POICandidate, error) {
	args := m.Called(ctx, area, categories, limit, expectedCountry)
	if c := args.Get(0); c != nil {
		return c.([]types.POICandidate), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockScorer is a mock implementation of detour.Scorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Enrich(ctx context.Context, candidates []types.POICandidate, routeGeometry []types.GeoPoint, mode types.TransportProfile, interestTags []string) []types.EnrichedPOI {
	args := m.Called(ctx, candidates, routeGeometry, mode, interestTags)
	return args.Get(0).([]types.EnrichedPOI)
}

// MockRanker is a mock implementation of ranking.Ranker
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(pois []types.EnrichedPOI, interestTags []string, currentTimeHint types.TimeSlot) []types.RankedPOI {
	args := m.Called(pois, interestTags, currentTimeHint)
	return args.Get(0).([]types.RankedPOI)
}

// MockAdvisor is a mock implementation of advisory.Service
type MockAdvisor struct {
	mock.Mock
}

func (m *MockAdvisor) Strategy(ctx context.Context, trip types.TripContext, days int) (advisory.StrategyPlan, bool) {
	args := m.Called(ctx, trip, days)
	return args.Get(0).(advisory.StrategyPlan), args.Bool(1)
}

func (m *MockAdvisor) Validate(ctx context.Context, pois []types.RankedPOI, trip types.TripContext) ([]types.RankedPOI, bool) {
	args := m.Called(ctx, pois, trip)
	return args.Get(0).([]types.RankedPOI), args.Bool(1)
}

func (m *MockAdvisor) FillGaps(ctx context.Context, gaps []types.Gap, trip types.TripContext, days []types.ItineraryDay) ([]types.GapFill, bool) {
	args := m.Called(ctx, gaps, trip, days)
	if f := args.Get(0); f != nil {
		return f.([]types.GapFill), args.Bool(1)
	}
	return nil, args.Bool(1)
}

type pipelineMocks struct {
	geocoder   *MockGeocoder
	router     *MockRouter
	segmenter  *MockSegmenter
	aggregator *MockAggregator
	scorer     *MockScorer
	ranker     *MockRanker
	advisor    *MockAdvisor
}

var (
	testTrip = types.TripContext{
		Origin:        "Munich",
		Destination:   "Zurich",
		TransportMode: types.ProfileDriving,
		InterestTags:  []string{"nature"},
	}

	munichWP = types.Waypoint{Name: "Munich", Latitude: 48.1374, Longitude: 11.5755, CountryCode: "de"}
	zurichWP = types.Waypoint{Name: "Zurich", Latitude: 47.3769, Longitude: 8.5417, CountryCode: "ch"}
)

func testRoute() *types.RouteResult {
	return &types.RouteResult{
		Waypoints: []types.Waypoint{munichWP, zurichWP},
		Geometry: []types.GeoPoint{
			munichWP.Point(),
			{Latitude: 47.75, Longitude: 10.0},
			zurichWP.Point(),
		},
		DistanceKm:    312.0,
		DurationHours: 3.7,
		Provider:      "osrm",
	}
}

func testSegments() []types.RouteSegment {
	return []types.RouteSegment{{
		DayIndex:              0,
		StartWaypoint:         munichWP,
		EndWaypoint:           zurichWP,
		Geometry:              testRoute().Geometry,
		DrivingTimeHours:      3.7,
		DistanceKm:            312.0,
		DepartureTimeEstimate: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}}
}

func fullDayRanked() []types.RankedPOI {
	mid := types.GeoPoint{Latitude: 47.75, Longitude: 10.0}
	mk := func(id, category string, kinds ...string) types.RankedPOI {
		return types.RankedPOI{
			EnrichedPOI: types.EnrichedPOI{
				POICandidate: types.POICandidate{
					ID: id, Name: id, Coordinates: mid, Category: category, Kinds: kinds, Rating: 4.0,
				},
			},
			RelevanceScore: 0.5,
		}
	}
	return []types.RankedPOI{
		mk("lunch", "foods", "restaurants"),
		mk("dinner", "foods", "cafes"),
		mk("lake", "natural", "lakes"),
	}
}

// happyMocks wires every stage for a successful single-day generation.
func happyMocks(t *testing.T) pipelineMocks {
	t.Helper()
	m := pipelineMocks{
		geocoder:   new(MockGeocoder),
		router:     new(MockRouter),
		segmenter:  new(MockSegmenter),
		aggregator: new(MockAggregator),
		scorer:     new(MockScorer),
		ranker:     new(MockRanker),
		advisor:    new(MockAdvisor),
	}

	m.geocoder.On("Resolve", mock.Anything, "Munich").Return(munichWP, nil)
	m.geocoder.On("Resolve", mock.Anything, "Zurich").Return(zurichWP, nil)
	m.router.On("GetRoute", mock.Anything, []types.Waypoint{munichWP, zurichWP}, types.ProfileDriving, types.RoutePreference("")).
		Return(testRoute(), nil)
	m.segmenter.On("Segment", mock.Anything, 0.0, mock.Anything).Return(testSegments(), nil)

	plan := advisory.StrategyPlan{
		CategoriesPerDay: [][]string{{"natural", "foods"}},
		SearchRadiusKm:   15,
		Tips:             []string{"pack for rain"},
	}
	m.advisor.On("Strategy", mock.Anything, mock.Anything, 1).Return(plan, false)

	candidates := make([]types.POICandidate, 0, 3)
	enriched := make([]types.EnrichedPOI, 0, 3)
	ranked := fullDayRanked()
	for _, r := range ranked {
		candidates = append(candidates, r.POICandidate)
		enriched = append(enriched, r.EnrichedPOI)
	}
	m.aggregator.On("FindPOIs", mock.Anything, mock.Anything, []string{"natural", "foods"}, defaultPOILimit, "de").
		Return(candidates, nil)
	m.scorer.On("Enrich", mock.Anything, candidates, mock.Anything, types.ProfileDriving, testTrip.InterestTags).
		Return(enriched)
	m.ranker.On("Rank", enriched, testTrip.InterestTags, types.SlotMorning).Return(ranked)

	m.advisor.On("Validate", mock.Anything, ranked, mock.Anything).Return(ranked, false)
	return m
}

func (m pipelineMocks) service(opts ...Option) *ServiceImpl {
	return NewService(m.geocoder, m.router, m.segmenter, m.aggregator, m.scorer, m.ranker, m.advisor, slog.Default(), opts...)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path produces a complete itinerary", func(t *testing.T) {
		m := happyMocks(t)
		itin, err := m.service().Generate(ctx, testTrip)

		require.NoError(t, err)
		require.Len(t, itin.Days, 1)
		assert.Len(t, itin.Days[0].POIs, 3)
		assert.Equal(t, 312.0, itin.TotalDistanceKm)
		assert.Equal(t, 3.7, itin.TotalDrivingHours)
		assert.False(t, itin.Degraded)
		assert.Empty(t, itin.SkippedEnhancements)
		assert.Equal(t, []string{"pack for rain"}, itin.Days[0].Tips)
		assert.NotZero(t, itin.ID)
		assert.False(t, itin.GeneratedAt.IsZero())
	})

	t.Run("geocoding failure aborts", func(t *testing.T) {
		m := happyMocks(t)
		m.geocoder.ExpectedCalls = nil
		m.geocoder.On("Resolve", mock.Anything, "Munich").Return(types.Waypoint{}, errors.New("no results"))

		_, err := m.service().Generate(ctx, testTrip)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `resolve "Munich"`)
		m.router.AssertNotCalled(t, "GetRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("routing failure aborts", func(t *testing.T) {
		m := happyMocks(t)
		m.router.ExpectedCalls = nil
		m.router.On("GetRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, types.ErrNoRouteFound)

		_, err := m.service().Generate(ctx, testTrip)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrNoRouteFound)
	})

	t.Run("poi failure for every segment aborts", func(t *testing.T) {
		m := happyMocks(t)
		m.aggregator.ExpectedCalls = nil
		m.aggregator.On("FindPOIs", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, types.ErrProviderUnavailable)

		_, err := m.service().Generate(ctx, testTrip)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrProviderUnavailable)
	})

	t.Run("degraded advisory stages are recorded, not fatal", func(t *testing.T) {
		m := happyMocks(t)
		m.advisor.ExpectedCalls = nil
		m.advisor.On("Strategy", mock.Anything, mock.Anything, 1).
			Return(advisory.StrategyPlan{CategoriesPerDay: [][]string{{"natural", "foods"}}, SearchRadiusKm: 15}, true)
		m.advisor.On("Validate", mock.Anything, mock.Anything, mock.Anything).
			Return(fullDayRanked(), true)

		itin, err := m.service().Generate(ctx, testTrip)
		require.NoError(t, err)
		assert.True(t, itin.Degraded)
		assert.Equal(t, []string{"strategy", "validation"}, itin.SkippedEnhancements)
	})

	t.Run("validation rejections trigger gap fill", func(t *testing.T) {
		m := happyMocks(t)
		m.advisor.ExpectedCalls = nil
		plan := advisory.StrategyPlan{CategoriesPerDay: [][]string{{"natural", "foods"}}, SearchRadiusKm: 15}
		m.advisor.On("Strategy", mock.Anything, mock.Anything, 1).Return(plan, false)

		// advisory throws out both meal options
		kept := fullDayRanked()[2:]
		m.advisor.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(kept, false)
		fills := []types.GapFill{{DayIndex: 0, Kind: types.GapMeal, Name: "Gasthof Sonne", Category: "foods"}}
		m.advisor.On("FillGaps", mock.Anything, mock.MatchedBy(func(gaps []types.Gap) bool {
			return len(gaps) == 1 && gaps[0].Kind == types.GapMeal
		}), mock.Anything, mock.Anything).Return(fills, false)

		itin, err := m.service().Generate(ctx, testTrip)
		require.NoError(t, err)
		require.Len(t, itin.Days, 1)
		assert.Len(t, itin.Days[0].POIs, 1)
		require.Len(t, itin.Days[0].Suggestions, 1)
		assert.Equal(t, "Gasthof Sonne", itin.Days[0].Suggestions[0].Name)
		assert.False(t, itin.Degraded)
	})

	t.Run("defaults to driving when the mode is empty", func(t *testing.T) {
		m := happyMocks(t)
		trip := testTrip
		trip.TransportMode = ""

		_, err := m.service().Generate(ctx, trip)
		require.NoError(t, err)
		m.router.AssertCalled(t, "GetRoute", mock.Anything, mock.Anything, types.ProfileDriving, types.RoutePreference(""))
	})

	t.Run("intermediate stops are resolved in order", func(t *testing.T) {
		m := happyMocks(t)
		innsbruck := types.Waypoint{Name: "Innsbruck", Latitude: 47.2692, Longitude: 11.4041, CountryCode: "at"}
		m.geocoder.On("Resolve", mock.Anything, "Innsbruck").Return(innsbruck, nil)
		m.router.ExpectedCalls = nil
		m.router.On("GetRoute", mock.Anything, []types.Waypoint{munichWP, innsbruck, zurichWP}, types.ProfileDriving, types.RoutePreference("")).
			Return(testRoute(), nil)

		trip := testTrip
		trip.IntermediateStops = []string{"Innsbruck"}
		_, err := m.service().Generate(ctx, trip)
		require.NoError(t, err)
		m.router.AssertExpectations(t)
	})
}

func TestGenerateStream(t *testing.T) {
	ctx := context.Background()

	t.Run("emits stages in order and closes the channel", func(t *testing.T) {
		m := happyMocks(t)
		eventCh := make(chan types.StreamEvent, 16)

		err := m.service().GenerateStream(ctx, testTrip, eventCh)
		require.NoError(t, err)

		var stages []types.Stage
		for ev := range eventCh {
			stages = append(stages, ev.Stage)
		}
		assert.Equal(t, []types.Stage{
			types.StageStrategy,
			types.StageRoutes,
			types.StagePOIs,
			types.StageRanked,
			types.StageAdvisoryComplete,
		}, stages)
	})

	t.Run("closes the channel on failure too", func(t *testing.T) {
		m := happyMocks(t)
		m.geocoder.ExpectedCalls = nil
		m.geocoder.On("Resolve", mock.Anything, mock.Anything).Return(types.Waypoint{}, errors.New("boom"))
		eventCh := make(chan types.StreamEvent, 16)

		err := m.service().GenerateStream(ctx, testTrip, eventCh)
		require.Error(t, err)

		_, open := <-eventCh
		assert.False(t, open)
	})

	t.Run("final event carries the enhanced itinerary", func(t *testing.T) {
		m := happyMocks(t)
		eventCh := make(chan types.StreamEvent, 16)

		require.NoError(t, m.service().GenerateStream(ctx, testTrip, eventCh))

		var last types.StreamEvent
		for ev := range eventCh {
			last = ev
		}
		itin, ok := last.Payload.(*types.Itinerary)
		require.True(t, ok)
		assert.Len(t, itin.Days, 1)
	})
}

func TestSegmentSearchArea(t *testing.T) {
	t.Run("covers the chord plus the plan radius", func(t *testing.T) {
		// short hop, roughly 42 km end to end
		seg := types.RouteSegment{Geometry: []types.GeoPoint{
			{Latitude: 47.00, Longitude: 8.00},
			{Latitude: 47.15, Longitude: 8.20},
			{Latitude: 47.30, Longitude: 8.40},
		}}
		area := segmentSearchArea(seg, 10)

		chord := types.DistanceKm(seg.Geometry[0], seg.Geometry[2])
		assert.Equal(t, seg.Geometry[1], area.Center)
		assert.InDelta(t, chord/2+10, area.RadiusKm, 0.01)
		assert.Less(t, area.RadiusKm, maxSearchRadiusKm)
	})

	t.Run("radius is capped on long segments", func(t *testing.T) {
		seg := testSegments()[0]
		area := segmentSearchArea(seg, 15)
		assert.Equal(t, maxSearchRadiusKm, area.RadiusKm)
	})

	t.Run("zero radius falls back to a sensible default", func(t *testing.T) {
		p := types.GeoPoint{Latitude: 47.0, Longitude: 8.0}
		seg := types.RouteSegment{Geometry: []types.GeoPoint{p, p}}
		area := segmentSearchArea(seg, 0)
		assert.Equal(t, 15.0, area.RadiusKm)
	})
}

func TestTimeHint(t *testing.T) {
	at := func(hour int) types.RouteSegment {
		return types.RouteSegment{DepartureTimeEstimate: time.Date(2026, 6, 1, hour, 0, 0, 0, time.UTC)}
	}
	assert.Equal(t, types.SlotMorning, timeHint(at(9)))
	assert.Equal(t, types.SlotAfternoon, timeHint(at(13)))
	assert.Equal(t, types.SlotEvening, timeHint(at(19)))
}

func TestServiceOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("top-k override truncates each day", func(t *testing.T) {
		m := happyMocks(t)
		itin, err := m.service(WithTopKPerDay(2)).Generate(ctx, testTrip)

		require.NoError(t, err)
		require.Len(t, itin.Days, 1)
		assert.Len(t, itin.Days[0].POIs, 2)
	})

	t.Run("configured daily budget flows to segmentation", func(t *testing.T) {
		m := happyMocks(t)
		m.segmenter.ExpectedCalls = nil
		m.segmenter.On("Segment", mock.Anything, 5.5, mock.Anything).Return(testSegments(), nil)

		_, err := m.service(WithDailyDrivingHours(5.5)).Generate(ctx, testTrip)

		require.NoError(t, err)
		m.segmenter.AssertCalled(t, "Segment", mock.Anything, 5.5, mock.Anything)
	})

	t.Run("trip's own budget wins over the configured default", func(t *testing.T) {
		m := happyMocks(t)
		m.segmenter.ExpectedCalls = nil
		m.segmenter.On("Segment", mock.Anything, 4.0, mock.Anything).Return(testSegments(), nil)

		trip := testTrip
		trip.MaxDrivingHoursPerDay = 4.0
		_, err := m.service(WithDailyDrivingHours(5.5)).Generate(ctx, trip)

		require.NoError(t, err)
		m.segmenter.AssertCalled(t, "Segment", mock.Anything, 4.0, mock.Anything)
	})

	t.Run("pipeline deadline override bounds the blocking stages", func(t *testing.T) {
		m := happyMocks(t)
		var deadline time.Time
		var hasDeadline bool
		m.geocoder.ExpectedCalls = nil
		m.geocoder.On("Resolve", mock.Anything, "Munich").
			Run(func(args mock.Arguments) {
				deadline, hasDeadline = args.Get(0).(context.Context).Deadline()
			}).
			Return(munichWP, nil)
		m.geocoder.On("Resolve", mock.Anything, "Zurich").Return(zurichWP, nil)

		_, err := m.service(WithPipelineDeadline(2 * time.Second)).Generate(ctx, testTrip)

		require.NoError(t, err)
		require.True(t, hasDeadline)
		assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
	})

	t.Run("non-positive overrides keep the defaults", func(t *testing.T) {
		m := happyMocks(t)
		svc := m.service(WithTopKPerDay(0), WithPipelineDeadline(0), WithDailyDrivingHours(-1))

		assert.Equal(t, defaultTopKPerDay, svc.topK)
		assert.Equal(t, preAdvisoryDeadline, svc.deadline)
		assert.Zero(t, svc.dailyHours)
	})
}
