package itinerary

import (
	"sort"

	"github.com/tidwall/rtree"

	"github.com/rhymeas/tripweaver/internal/types"
)

// segmentPadKm pads each segment's bounding box when claiming POIs, so a
// stop just off the day's path still belongs to that day.
const segmentPadKm = 10.0

// composeDays assigns each ranked POI to the day whose padded bounding area
// contains it, keeping the top K per day. A POI near two days' paths goes to
// the earlier day. Deterministic for identical inputs: claim order is day
// order, and POIs within a day keep their rank order.
func composeDays(segments []types.RouteSegment, ranked []types.RankedPOI, topK int) []types.ItineraryDay {
	var tree rtree.RTreeG[int]
	for i, p := range ranked {
		pt := [2]float64{p.Coordinates.Longitude, p.Coordinates.Latitude}
		tree.Insert(pt, pt, i)
	}

	claimed := make([]bool, len(ranked))
	days := make([]types.ItineraryDay, 0, len(segments))
	for _, seg := range segments {
		min, max := types.BoundingBox(seg.Geometry, segmentPadKm)

		var hits []int
		tree.Search(
			[2]float64{min.Longitude, min.Latitude},
			[2]float64{max.Longitude, max.Latitude},
			func(_, _ [2]float64, idx int) bool {
				if !claimed[idx] {
					hits = append(hits, idx)
				}
				return true
			},
		)
		// Search order is index-tree order; restore rank order before
		// truncating to the per-day budget.
		sort.Ints(hits)

		pois := make([]types.RankedPOI, 0, topK)
		for _, idx := range hits {
			if topK > 0 && len(pois) >= topK {
				break
			}
			claimed[idx] = true
			pois = append(pois, ranked[idx])
		}
		days = append(days, types.ItineraryDay{Segment: seg, POIs: pois})
	}
	return days
}

// attachGapFills distributes advisory suggestions onto their days.
func attachGapFills(days []types.ItineraryDay, fills []types.GapFill) {
	for _, fill := range fills {
		if fill.DayIndex < 0 || fill.DayIndex >= len(days) {
			continue
		}
		days[fill.DayIndex].Suggestions = append(days[fill.DayIndex].Suggestions, fill)
	}
}
