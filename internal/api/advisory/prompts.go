package advisory

import (
	"fmt"
	"strings"

	"github.com/rhymeas/tripweaver/internal/types"
)

func strategyPrompt(trip types.TripContext, days int) string {
	return fmt.Sprintf(`You are a road-trip planning assistant.
A traveler drives from %s to %s over %d day(s) by %s.
Budget tier: %s. Interests: %s.

Propose which point-of-interest categories to prioritize for each day of the
trip, a sensible search radius around the route in km, and up to three short
practical tips.

Respond with JSON only, exactly this schema:
{
  "days": [{"day_index": 0, "categories": ["category", ...]}],
  "search_radius_km": 15,
  "tips": ["tip", ...]
}`,
		trip.Origin, trip.Destination, days, trip.TransportMode,
		orUnspecified(string(trip.BudgetTier)), orUnspecified(strings.Join(trip.InterestTags, ", ")))
}

func validationPrompt(pois []types.RankedPOI, trip types.TripContext) string {
	var list strings.Builder
	for _, p := range pois {
		fmt.Fprintf(&list, "- id=%s name=%q category=%q rating=%.1f\n",
			p.ID, p.Name, p.Category, p.Rating)
	}
	return fmt.Sprintf(`You are reviewing stop candidates for a road trip from %s to %s.
Budget tier: %s. Interests: %s.

Candidates:
%s
Remove any candidate that is contextually inappropriate for this traveler
(wrong budget tier, clashes with the stated interests, unsuitable venue
type). Keep everything that is a reasonable fit.

Respond with JSON only, exactly this schema:
{"approved_ids": ["id", ...]}`,
		trip.Origin, trip.Destination,
		orUnspecified(string(trip.BudgetTier)), orUnspecified(strings.Join(trip.InterestTags, ", ")),
		list.String())
}

func gapFillPrompt(gaps []types.Gap, trip types.TripContext, days []types.ItineraryDay) string {
	var gapList strings.Builder
	for _, g := range gaps {
		fmt.Fprintf(&gapList, "- day %d: missing %s (%s)\n", g.DayIndex+1, g.Kind, g.Detail)
	}
	var dayList strings.Builder
	for _, d := range days {
		fmt.Fprintf(&dayList, "- day %d ends near %s (%.4f, %.4f)\n",
			d.Segment.DayIndex+1, d.Segment.EndWaypoint.Name,
			d.Segment.EndWaypoint.Latitude, d.Segment.EndWaypoint.Longitude)
	}
	return fmt.Sprintf(`A road trip plan from %s to %s has these deficiencies:
%s
Day endpoints:
%s
Budget tier: %s.

Propose one specific, real place (accommodation, restaurant, or activity)
for each deficiency, near the relevant day's endpoint.

Respond with JSON only, exactly this schema:
{
  "suggestions": [{"day_index": 0, "kind": "overnight|meal|activity",
    "name": "...", "category": "...", "description": "...",
    "latitude": 0.0, "longitude": 0.0}]
}`,
		trip.Origin, trip.Destination, gapList.String(), dayList.String(),
		orUnspecified(string(trip.BudgetTier)))
}

func orUnspecified(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
