package itinerary

import (
	"fmt"
	"strings"

	"github.com/rhymeas/tripweaver/internal/types"
)

// Plan health rule: on a multi-day trip every day except the last needs an
// overnight option, and every day needs two meal options and one activity.
const (
	requiredMealOptions = 2
	requiredActivities  = 1
)

var overnightKeywords = []string{"accomodation", "accommodation", "hotel", "hostel", "guest_house", "camp"}
var mealKeywords = []string{"food", "restaurant", "cafe", "bar", "bakery", "winery"}

// detectGaps applies the deficiency rule to a draft plan. The returned gaps
// drive the advisory gap-fill call; an empty result skips it entirely.
func detectGaps(days []types.ItineraryDay) []types.Gap {
	multiDay := len(days) > 1
	var gaps []types.Gap
	for _, day := range days {
		overnight, meals, activities := 0, 0, 0
		for _, p := range day.POIs {
			switch classifyForGaps(p) {
			case types.GapOvernight:
				overnight++
			case types.GapMeal:
				meals++
			default:
				activities++
			}
		}

		idx := day.Segment.DayIndex
		if multiDay && idx < len(days)-1 && overnight < 1 {
			gaps = append(gaps, types.Gap{
				DayIndex: idx,
				Kind:     types.GapOvernight,
				Detail:   fmt.Sprintf("day %d has no overnight stop", idx+1),
			})
		}
		if meals < requiredMealOptions {
			gaps = append(gaps, types.Gap{
				DayIndex: idx,
				Kind:     types.GapMeal,
				Detail:   fmt.Sprintf("day %d has %d of %d meal options", idx+1, meals, requiredMealOptions),
			})
		}
		if activities < requiredActivities {
			gaps = append(gaps, types.Gap{
				DayIndex: idx,
				Kind:     types.GapActivity,
				Detail:   fmt.Sprintf("day %d has no activity", idx+1),
			})
		}
	}
	return gaps
}

func classifyForGaps(p types.RankedPOI) types.GapKind {
	tags := append([]string{p.Category}, p.Kinds...)
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, kw := range overnightKeywords {
			if strings.Contains(lower, kw) {
				return types.GapOvernight
			}
		}
	}
	if p.ExperienceCategory == types.ExperienceFoodBreak {
		return types.GapMeal
	}
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, kw := range mealKeywords {
			if strings.Contains(lower, kw) {
				return types.GapMeal
			}
		}
	}
	return types.GapActivity
}
