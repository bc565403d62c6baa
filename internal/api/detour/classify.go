package detour

import (
	"sort"
	"strings"

	"github.com/rhymeas/tripweaver/internal/types"
)

// visitProfile is the lookup entry for one recognized category.
type visitProfile struct {
	minutes    int
	experience types.ExperienceCategory
	slot       types.TimeSlot
}

// visitProfiles maps category keywords onto visit durations and experience
// buckets. Matching is substring-based over the POI's category and kinds.
var visitProfiles = map[string]visitProfile{
	"viewpoint":  {20, types.ExperienceQuickStop, types.SlotAny},
	"waterfall":  {30, types.ExperienceQuickStop, types.SlotAny},
	"monument":   {25, types.ExperienceQuickStop, types.SlotAny},
	"beach":      {60, types.ExperienceStretchBreak, types.SlotAfternoon},
	"park":       {45, types.ExperienceStretchBreak, types.SlotAny},
	"garden":     {45, types.ExperienceStretchBreak, types.SlotAny},
	"hiking":     {90, types.ExperienceStretchBreak, types.SlotMorning},
	"restaurant": {60, types.ExperienceFoodBreak, types.SlotAny},
	"cafe":       {30, types.ExperienceFoodBreak, types.SlotMorning},
	"food":       {45, types.ExperienceFoodBreak, types.SlotAny},
	"winery":     {75, types.ExperienceFoodBreak, types.SlotAfternoon},
	"museum":     {75, types.ExperienceCulturalImmersion, types.SlotAfternoon},
	"gallery":    {60, types.ExperienceCulturalImmersion, types.SlotAfternoon},
	"castle":     {90, types.ExperienceCulturalImmersion, types.SlotMorning},
	"church":     {30, types.ExperienceCulturalImmersion, types.SlotAny},
	"historic":   {45, types.ExperienceCulturalImmersion, types.SlotAny},
	"theatre":    {120, types.ExperienceCulturalImmersion, types.SlotEvening},
	"festival":   {180, types.ExperienceCulturalImmersion, types.SlotEvening},
	"nightlife":  {120, types.ExperienceCulturalImmersion, types.SlotEvening},
}

// defaultVisit is used when no keyword matches.
var defaultVisit = visitProfile{30, types.ExperienceQuickStop, types.SlotAny}

// visitKeywords is the fixed match order, so a tag containing two keywords
// always classifies the same way.
var visitKeywords = func() []string {
	keys := make([]string, 0, len(visitProfiles))
	for k := range visitProfiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// classifyVisit assigns visit duration, experience category, and preferred
// time slot from the POI's category and kind tags.
func classifyVisit(c types.POICandidate) (int, types.ExperienceCategory, types.TimeSlot) {
	tags := append([]string{c.Category}, c.Kinds...)
	for _, tag := range tags {
		normalized := normalizeTag(tag)
		for _, keyword := range visitKeywords {
			if strings.Contains(normalized, keyword) {
				profile := visitProfiles[keyword]
				return profile.minutes, profile.experience, profile.slot
			}
		}
	}
	return defaultVisit.minutes, defaultVisit.experience, defaultVisit.slot
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
