package types

import (
	"time"

	"github.com/google/uuid"
)

// ItineraryDay is one RouteSegment with the POIs assigned to it and any
// advisory suggestions for that day.
type ItineraryDay struct {
	Segment     RouteSegment `json:"segment"`
	POIs        []RankedPOI  `json:"pois"`
	Suggestions []GapFill    `json:"suggestions,omitempty"`
	Tips        []string     `json:"tips,omitempty"`
}

// Itinerary is the final day-by-day plan. Built once per request and never
// mutated by the engine after return.
type Itinerary struct {
	ID                  uuid.UUID    `json:"id"`
	Context             TripContext  `json:"context"`
	Days                []ItineraryDay `json:"days"`
	TotalDistanceKm     float64      `json:"total_distance_km"`
	TotalDrivingHours   float64      `json:"total_driving_hours"`
	Degraded            bool         `json:"degraded"`
	SkippedEnhancements []string     `json:"skipped_enhancements,omitempty"`
	GeneratedAt         time.Time    `json:"generated_at"`
}

// GapKind identifies the rule the draft plan violated.
type GapKind string

const (
	GapOvernight GapKind = "overnight"
	GapMeal      GapKind = "meal"
	GapActivity  GapKind = "activity"
)

// Gap is a detected deficiency in a draft itinerary day.
type Gap struct {
	DayIndex int     `json:"day_index"`
	Kind     GapKind `json:"kind"`
	Detail   string  `json:"detail"`
}

// GapFill is an advisory proposal addressing one Gap.
type GapFill struct {
	DayIndex    int       `json:"day_index"`
	Kind        GapKind   `json:"kind"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
}

// Stage names the progressive-update phases in emission order.
type Stage string

const (
	StageStrategy         Stage = "strategy"
	StageRoutes           Stage = "routes"
	StagePOIs             Stage = "pois"
	StageRanked           Stage = "ranked"
	StageAdvisoryComplete Stage = "advisory-complete"
)

// StreamEvent is one progressive-update message sent to the caller while an
// itinerary is being assembled.
type StreamEvent struct {
	Stage   Stage       `json:"stage"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}
