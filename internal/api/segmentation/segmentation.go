package segmentation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rhymeas/tripweaver/internal/types"
)

// departureHour is the assumed local start of each driving day.
const departureHour = 9

var _ Engine = (*EngineImpl)(nil)

// Engine splits a route geometry into day-sized driving segments.
type Engine interface {
	Segment(route *types.RouteResult, maxDrivingHoursPerDay float64, startDate time.Time) ([]types.RouteSegment, error)
}

type EngineImpl struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *EngineImpl {
	return &EngineImpl{logger: logger}
}

// Segment walks the geometry accumulating driving time and closes a segment
// at the nearest vertex whenever the day budget would be exceeded. Without a
// budget, the route is cut at the caller's explicit intermediate stops.
// Per-edge distance and time are scaled so segment totals reconcile exactly
// with the provider's route totals.
func (e *EngineImpl) Segment(route *types.RouteResult, maxDrivingHoursPerDay float64, startDate time.Time) ([]types.RouteSegment, error) {
	if route == nil || len(route.Geometry) < 2 {
		return nil, fmt.Errorf("route geometry must have at least two points")
	}

	var cuts []int
	if maxDrivingHoursPerDay > 0 {
		cuts = e.budgetCuts(route, maxDrivingHoursPerDay)
	} else {
		cuts = e.waypointCuts(route)
	}
	return e.build(route, cuts, startDate), nil
}

// edgeWeights returns per-edge distances scaled so they sum to the route's
// reported total, and the uniform time cost per scaled km.
func edgeWeights(route *types.RouteResult) (distances []float64, hoursPerKm float64) {
	geomLen := types.GeometryLengthKm(route.Geometry)
	scale := 1.0
	if geomLen > 0 {
		scale = route.DistanceKm / geomLen
	}
	distances = make([]float64, len(route.Geometry)-1)
	for i := 0; i < len(route.Geometry)-1; i++ {
		distances[i] = types.DistanceKm(route.Geometry[i], route.Geometry[i+1]) * scale
	}
	if route.DistanceKm > 0 {
		hoursPerKm = route.DurationHours / route.DistanceKm
	}
	return distances, hoursPerKm
}

// budgetCuts returns the geometry indices at which days end (exclusive of
// the final vertex).
func (e *EngineImpl) budgetCuts(route *types.RouteResult, maxHours float64) []int {
	distances, hoursPerKm := edgeWeights(route)

	var cuts []int
	accumulated := 0.0
	segmentStart := 0
	for i, d := range distances {
		edgeHours := d * hoursPerKm
		if accumulated+edgeHours > maxHours && i > segmentStart {
			cuts = append(cuts, i)
			segmentStart = i
			accumulated = 0
		}
		accumulated += edgeHours
	}
	return cuts
}

// waypointCuts cuts at the geometry vertex nearest each explicit
// intermediate stop.
func (e *EngineImpl) waypointCuts(route *types.RouteResult) []int {
	if len(route.Waypoints) <= 2 {
		return nil
	}
	var cuts []int
	prev := 0
	for _, wp := range route.Waypoints[1 : len(route.Waypoints)-1] {
		idx, _ := types.NearestVertex(route.Geometry, wp.Point())
		if idx > prev && idx < len(route.Geometry)-1 {
			cuts = append(cuts, idx)
			prev = idx
		}
	}
	return cuts
}

func (e *EngineImpl) build(route *types.RouteResult, cuts []int, startDate time.Time) []types.RouteSegment {
	distances, hoursPerKm := edgeWeights(route)

	bounds := append([]int{0}, cuts...)
	bounds = append(bounds, len(route.Geometry)-1)

	day0 := dayStart(startDate)
	segments := make([]types.RouteSegment, 0, len(bounds)-1)
	for day := 0; day < len(bounds)-1; day++ {
		start, end := bounds[day], bounds[day+1]

		distKm := 0.0
		for i := start; i < end; i++ {
			distKm += distances[i]
		}
		drivingHours := distKm * hoursPerKm

		departure := day0.AddDate(0, 0, day)
		seg := types.RouteSegment{
			DayIndex:              day,
			StartWaypoint:         e.boundaryWaypoint(route, start, day, true),
			EndWaypoint:           e.boundaryWaypoint(route, end, day, false),
			Geometry:              route.Geometry[start : end+1],
			DrivingTimeHours:      drivingHours,
			DistanceKm:            distKm,
			DepartureTimeEstimate: departure,
			ArrivalTimeEstimate:   departure.Add(time.Duration(drivingHours * float64(time.Hour))),
		}
		segments = append(segments, seg)
	}

	e.logger.Debug("route segmented",
		slog.Int("segments", len(segments)),
		slog.Float64("total_distance_km", route.DistanceKm),
		slog.Float64("total_duration_hours", route.DurationHours))
	return segments
}

// boundaryWaypoint reuses a real trip waypoint when the boundary vertex sits
// on one, otherwise synthesizes an overnight-stop waypoint at the vertex.
func (e *EngineImpl) boundaryWaypoint(route *types.RouteResult, vertex, day int, isStart bool) types.Waypoint {
	p := route.Geometry[vertex]
	for _, wp := range route.Waypoints {
		if types.DistanceKm(p, wp.Point()) < 1.0 {
			return wp
		}
	}
	name := fmt.Sprintf("day %d overnight stop", day+1)
	if isStart {
		name = fmt.Sprintf("day %d departure", day+1)
	}
	return types.Waypoint{
		Name:        name,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		CountryCode: route.Waypoints[0].CountryCode,
	}
}

func dayStart(startDate time.Time) time.Time {
	if startDate.IsZero() {
		startDate = time.Now()
	}
	y, m, d := startDate.Date()
	return time.Date(y, m, d, departureHour, 0, 0, 0, startDate.Location())
}
