package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhymeas/tripweaver/internal/types"
)

var _ Provider = (*ORSProvider)(nil)

// ORSProvider routes against an OpenRouteService-compatible endpoint.
// Secondary in the priority order; carries an API key per request.
type ORSProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewORSProvider(baseURL, apiKey string, timeout time.Duration) (*ORSProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openrouteservice api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	return &ORSProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

func (p *ORSProvider) Name() string { return "openrouteservice" }

func orsProfile(profile types.TransportProfile) string {
	switch profile {
	case types.ProfileCycling:
		return "cycling-regular"
	case types.ProfileWalking:
		return "foot-walking"
	default:
		return "driving-car"
	}
}

type orsRequest struct {
	Coordinates      [][]float64          `json:"coordinates"`
	AlternativeRoutes *orsAlternativeSpec `json:"alternative_routes,omitempty"`
}

type orsAlternativeSpec struct {
	TargetCount int `json:"target_count"`
}

type orsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (p *ORSProvider) GetRoute(ctx context.Context, req RouteRequest) (*types.RouteResult, error) {
	payload := orsRequest{Coordinates: make([][]float64, len(req.Waypoints))}
	for i, wp := range req.Waypoints {
		payload.Coordinates[i] = []float64{wp.Longitude, wp.Latitude}
	}
	// ORS only supports alternatives for two-waypoint requests.
	if req.WantAlternatives && len(req.Waypoints) == 2 {
		payload.AlternativeRoutes = &orsAlternativeSpec{TargetCount: 3}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ors request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", p.baseURL, orsProfile(req.Profile))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ors request: %w", err)
	}
	httpReq.Header.Set("Authorization", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ors: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound && strings.Contains(string(raw), "2009") {
			// ORS error 2009: route could not be found between locations.
			return nil, fmt.Errorf("%w: ors", types.ErrNoRouteFound)
		}
		return nil, &types.ProviderStatusError{
			Provider: p.Name(),
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(raw)),
		}
	}

	var decoded orsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: ors: malformed response: %v", types.ErrProviderUnavailable, err)
	}
	if len(decoded.Features) == 0 {
		return nil, fmt.Errorf("%w: ors: empty feature set", types.ErrProviderUnavailable)
	}

	primary := decoded.Features[0]
	result := &types.RouteResult{
		Waypoints:     req.Waypoints,
		Geometry:      lonLatToPoints(primary.Geometry.Coordinates),
		DistanceKm:    primary.Properties.Summary.Distance / 1000.0,
		DurationHours: primary.Properties.Summary.Duration / 3600.0,
		Provider:      p.Name(),
	}
	for _, alt := range decoded.Features[1:] {
		result.AlternativeGeometries = append(result.AlternativeGeometries, types.Alternative{
			Geometry:      lonLatToPoints(alt.Geometry.Coordinates),
			DistanceKm:    alt.Properties.Summary.Distance / 1000.0,
			DurationHours: alt.Properties.Summary.Duration / 3600.0,
		})
	}
	return result, nil
}
