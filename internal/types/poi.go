package types

// ExperienceCategory buckets a POI's visit into broad stop types.
type ExperienceCategory string

const (
	ExperienceQuickStop         ExperienceCategory = "quick-stop"
	ExperienceFoodBreak         ExperienceCategory = "food-break"
	ExperienceStretchBreak      ExperienceCategory = "stretch-break"
	ExperienceCulturalImmersion ExperienceCategory = "cultural-immersion"
)

// TimeSlot is the part of day a POI is best visited in.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotAny       TimeSlot = "any"
)

// POICandidate is a raw, deduplicated point of interest as returned by the
// aggregator. Duplicates merge by proximity plus fuzzy name match; the
// highest-rated, most complete record wins and SourceProviders are unioned.
type POICandidate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Coordinates     GeoPoint `json:"coordinates"`
	Category        string   `json:"category"`
	Rating          float64  `json:"rating"`
	SourceProviders []string `json:"source_providers"`
	Kinds           []string `json:"kinds,omitempty"`
}

// EnrichedPOI carries detour cost and visit-duration classification on top
// of a candidate. Immutable after enrichment.
type EnrichedPOI struct {
	POICandidate
	DetourMinutes        float64            `json:"detour_minutes"`
	DetourKm             float64            `json:"detour_km"`
	WorthTheDetour       bool               `json:"worth_the_detour"`
	VisitDurationMinutes int                `json:"visit_duration_minutes"`
	ExperienceCategory   ExperienceCategory `json:"experience_category"`
	PreferredTimeSlot    TimeSlot           `json:"preferred_time_slot"`
}

// RankedPOI is an enriched POI with its relevance score. Ordering is by
// RelevanceScore descending, ties broken by Rating descending then ID
// ascending so output is deterministic.
type RankedPOI struct {
	EnrichedPOI
	RelevanceScore float64        `json:"relevance_score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
}

// ScoreBreakdown exposes the weighted components behind a relevance score.
type ScoreBreakdown struct {
	InterestMatch    float64 `json:"interest_match"`
	NormalizedRating float64 `json:"normalized_rating"`
	DetourPenalty    float64 `json:"detour_penalty"`
	TimeSlotBonus    float64 `json:"time_slot_bonus"`
}
