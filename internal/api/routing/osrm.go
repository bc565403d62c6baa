package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhymeas/tripweaver/internal/types"
)

var _ Provider = (*OSRMProvider)(nil)

// OSRMProvider routes against an OSRM-compatible HTTP endpoint.
type OSRMProvider struct {
	client  *http.Client
	baseURL string
}

func NewOSRMProvider(baseURL string, timeout time.Duration) *OSRMProvider {
	if baseURL == "" {
		baseURL = "https://router.project-osrm.org"
	}
	return &OSRMProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *OSRMProvider) Name() string { return "osrm" }

func osrmProfile(profile types.TransportProfile) string {
	switch profile {
	case types.ProfileCycling:
		return "bike"
	case types.ProfileWalking:
		return "foot"
	default:
		return "driving"
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func (p *OSRMProvider) GetRoute(ctx context.Context, req RouteRequest) (*types.RouteResult, error) {
	coords := make([]string, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		coords[i] = fmt.Sprintf("%f,%f", wp.Longitude, wp.Latitude)
	}
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&alternatives=%t",
		p.baseURL, osrmProfile(req.Profile), strings.Join(coords, ";"), req.WantAlternatives)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create osrm request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: osrm: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.ProviderStatusError{
			Provider: p.Name(),
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: osrm: malformed response: %v", types.ErrProviderUnavailable, err)
	}
	if decoded.Code == "NoRoute" {
		return nil, fmt.Errorf("%w: osrm", types.ErrNoRouteFound)
	}
	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("%w: osrm: code %q with %d routes",
			types.ErrProviderUnavailable, decoded.Code, len(decoded.Routes))
	}

	primary := decoded.Routes[0]
	result := &types.RouteResult{
		Waypoints:     req.Waypoints,
		Geometry:      lonLatToPoints(primary.Geometry.Coordinates),
		DistanceKm:    primary.Distance / 1000.0,
		DurationHours: primary.Duration / 3600.0,
		Provider:      p.Name(),
	}
	for _, alt := range decoded.Routes[1:] {
		result.AlternativeGeometries = append(result.AlternativeGeometries, types.Alternative{
			Geometry:      lonLatToPoints(alt.Geometry.Coordinates),
			DistanceKm:    alt.Distance / 1000.0,
			DurationHours: alt.Duration / 3600.0,
		})
	}
	return result, nil
}

func lonLatToPoints(coords [][]float64) []types.GeoPoint {
	points := make([]types.GeoPoint, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		points = append(points, types.GeoPoint{Latitude: c[1], Longitude: c[0]})
	}
	return points
}
