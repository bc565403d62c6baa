package routing

import (
	"context"

	"github.com/rhymeas/tripweaver/internal/types"
)

// RouteRequest is what a concrete provider needs to compute one route.
type RouteRequest struct {
	Waypoints        []types.Waypoint
	Profile          types.TransportProfile
	WantAlternatives bool
}

// Provider is one interchangeable routing backend. Implementations signal
// rate limiting and unavailability through the error taxonomy in
// internal/types so the client can choose fallback over retry.
type Provider interface {
	Name() string
	GetRoute(ctx context.Context, req RouteRequest) (*types.RouteResult, error)
}
