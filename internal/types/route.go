package types

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// RouteResult is the output of one routing call. Geometry ordering is
// origin-first; the first/last points sit within a small tolerance of the
// first/last waypoint.
type RouteResult struct {
	Waypoints             []Waypoint   `json:"waypoints"`
	Geometry              []GeoPoint   `json:"geometry"`
	DistanceKm            float64      `json:"distance_km"`
	DurationHours         float64      `json:"duration_hours"`
	Provider              string       `json:"provider"`
	AlternativeGeometries []Alternative `json:"alternative_geometries,omitempty"`
}

// Alternative is a provider-native alternative path to the same destination.
type Alternative struct {
	Geometry      []GeoPoint `json:"geometry"`
	DistanceKm    float64    `json:"distance_km"`
	DurationHours float64    `json:"duration_hours"`
}

// RouteSegment is one day's worth of driving carved out of a RouteResult.
// Segments are contiguous and non-overlapping; their concatenated totals
// equal the parent route's within floating-point tolerance.
type RouteSegment struct {
	DayIndex              int        `json:"day_index"`
	StartWaypoint         Waypoint   `json:"start_waypoint"`
	EndWaypoint           Waypoint   `json:"end_waypoint"`
	Geometry              []GeoPoint `json:"geometry"`
	DrivingTimeHours      float64    `json:"driving_time_hours"`
	DistanceKm            float64    `json:"distance_km"`
	DepartureTimeEstimate time.Time  `json:"departure_time_estimate"`
	ArrivalTimeEstimate   time.Time  `json:"arrival_time_estimate"`
}

// orbPoint converts to orb's lon/lat ordering.
func orbPoint(p GeoPoint) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// DistanceKm returns the great-circle distance between two points in km.
func DistanceKm(a, b GeoPoint) float64 {
	return geo.DistanceHaversine(orbPoint(a), orbPoint(b)) / 1000.0
}

// GeometryLengthKm returns the cumulative length of a polyline in km.
func GeometryLengthKm(points []GeoPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orbPoint(p)
	}
	return geo.LengthHaversine(line) / 1000.0
}

// NearestVertex returns the index of the geometry vertex closest to p and
// the distance to it in km. Returns -1 for an empty geometry.
func NearestVertex(geometry []GeoPoint, p GeoPoint) (int, float64) {
	best := -1
	bestDist := 0.0
	for i, v := range geometry {
		d := DistanceKm(v, p)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

// BoundingBox returns the min/max corners of a polyline, padded by padKm on
// every side. Used for assigning POIs to the segment they belong to.
func BoundingBox(points []GeoPoint, padKm float64) (min, max GeoPoint) {
	if len(points) == 0 {
		return GeoPoint{}, GeoPoint{}
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		if p.Latitude < min.Latitude {
			min.Latitude = p.Latitude
		}
		if p.Latitude > max.Latitude {
			max.Latitude = p.Latitude
		}
		if p.Longitude < min.Longitude {
			min.Longitude = p.Longitude
		}
		if p.Longitude > max.Longitude {
			max.Longitude = p.Longitude
		}
	}
	// 1 degree of latitude is ~111 km; longitude padding is approximated the
	// same way, which over-pads towards the poles and is fine for filtering.
	pad := padKm / 111.0
	min.Latitude -= pad
	min.Longitude -= pad
	max.Latitude += pad
	max.Longitude += pad
	return min, max
}
