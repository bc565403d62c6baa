package ranking

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/rhymeas/tripweaver/internal/types"
)

// Score weights. They sum to 1 so the final score stays in [0,1].
const (
	weightInterest = 0.4
	weightRating   = 0.3
	weightDetour   = 0.2
	weightTimeSlot = 0.1
)

var _ Ranker = (*RankerImpl)(nil)

// Ranker orders enriched POIs against a traveler interest profile.
type Ranker interface {
	Rank(pois []types.EnrichedPOI, interestTags []string, currentTimeHint types.TimeSlot) []types.RankedPOI
}

type RankerImpl struct {
	logger *slog.Logger
}

func NewRanker(logger *slog.Logger) *RankerImpl {
	return &RankerImpl{logger: logger}
}

// Rank scores every POI and sorts descending by score; ties break by rating
// descending then id ascending so the ordering is reproducible.
func (r *RankerImpl) Rank(pois []types.EnrichedPOI, interestTags []string, currentTimeHint types.TimeSlot) []types.RankedPOI {
	interests := normalizeTags(interestTags)

	ranked := make([]types.RankedPOI, 0, len(pois))
	for _, p := range pois {
		breakdown := types.ScoreBreakdown{
			InterestMatch:    jaccard(poiTags(p.POICandidate), interests),
			NormalizedRating: clamp01(p.Rating / 5.0),
			DetourPenalty:    detourPenalty(p.DetourMinutes),
			TimeSlotBonus:    timeSlotBonus(p.PreferredTimeSlot, currentTimeHint),
		}
		score := weightInterest*breakdown.InterestMatch +
			weightRating*breakdown.NormalizedRating +
			weightDetour*(1-breakdown.DetourPenalty) +
			weightTimeSlot*breakdown.TimeSlotBonus

		ranked = append(ranked, types.RankedPOI{
			EnrichedPOI:    p,
			RelevanceScore: score,
			ScoreBreakdown: breakdown,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RelevanceScore != ranked[j].RelevanceScore {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		}
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// detourPenalty = 1 - e^(-detourMinutes/30); 0 for a POI on the route,
// approaching 1 as the detour grows.
func detourPenalty(detourMinutes float64) float64 {
	if detourMinutes <= 0 {
		return 0
	}
	return 1 - math.Exp(-detourMinutes/30)
}

func timeSlotBonus(preferred, hint types.TimeSlot) float64 {
	if hint == "" || preferred == "" {
		return 0
	}
	if preferred == hint || preferred == types.SlotAny {
		return 1
	}
	return 0
}

// jaccard is |A ∩ B| / |A ∪ B| over normalized tag sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func poiTags(c types.POICandidate) map[string]struct{} {
	return normalizeTags(append([]string{c.Category}, c.Kinds...))
}

func normalizeTags(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		normalized := strings.ToLower(strings.TrimSpace(t))
		if normalized != "" {
			out[normalized] = struct{}{}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
