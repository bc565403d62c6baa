package poi

import (
	"context"

	"github.com/rhymeas/tripweaver/internal/types"
)

// SearchArea is a circle to look for POIs in.
type SearchArea struct {
	Center   types.GeoPoint
	RadiusKm float64
}

// Provider is one interchangeable POI backend.
type Provider interface {
	Name() string
	POIsNear(ctx context.Context, area SearchArea, categories []string) ([]types.POICandidate, error)
}
