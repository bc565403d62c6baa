package types

import "time"

// TransportProfile selects the routing profile used for provider calls.
type TransportProfile string

const (
	ProfileDriving TransportProfile = "driving"
	ProfileCycling TransportProfile = "cycling"
	ProfileWalking TransportProfile = "walking"
)

// RoutePreference selects how alternatives are picked from a provider.
type RoutePreference string

const (
	PreferenceFastest RoutePreference = "fastest"
	PreferenceScenic  RoutePreference = "scenic"
	PreferenceLongest RoutePreference = "longest"
)

type BudgetTier string

const (
	BudgetLow    BudgetTier = "budget"
	BudgetMedium BudgetTier = "mid-range"
	BudgetHigh   BudgetTier = "premium"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Waypoint is a geocoded stop on the trip. Immutable once resolved by the
// geocoder; every downstream component only reads it.
type Waypoint struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code"`
	AdminRegion string  `json:"admin_region,omitempty"`
}

func (w Waypoint) Point() GeoPoint {
	return GeoPoint{Latitude: w.Latitude, Longitude: w.Longitude}
}

// TripContext is the read-only input for a whole itinerary request.
type TripContext struct {
	Origin                string           `json:"origin"`
	Destination           string           `json:"destination"`
	IntermediateStops     []string         `json:"intermediate_stops,omitempty"`
	TransportMode         TransportProfile `json:"transport_mode"`
	RoutePreference       RoutePreference  `json:"route_preference,omitempty"`
	BudgetTier            BudgetTier       `json:"budget_tier,omitempty"`
	InterestTags          []string         `json:"interest_tags,omitempty"`
	MaxDrivingHoursPerDay float64          `json:"max_driving_hours_per_day,omitempty"`
	StartDate             time.Time        `json:"start_date"`
}
