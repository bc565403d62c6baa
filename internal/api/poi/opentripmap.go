package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhymeas/tripweaver/internal/types"
)

var _ Provider = (*OpenTripMapProvider)(nil)

// OpenTripMapProvider searches an OpenTripMap-compatible places endpoint.
type OpenTripMapProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewOpenTripMapProvider(baseURL, apiKey string, timeout time.Duration) *OpenTripMapProvider {
	if baseURL == "" {
		baseURL = "https://api.opentripmap.com/0.1/en"
	}
	return &OpenTripMapProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *OpenTripMapProvider) Name() string { return "opentripmap" }

type openTripMapFeature struct {
	Properties struct {
		XID   string  `json:"xid"`
		Name  string  `json:"name"`
		Kinds string  `json:"kinds"`
		Rate  float64 `json:"rate"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func (p *OpenTripMapProvider) POIsNear(ctx context.Context, area SearchArea, categories []string) ([]types.POICandidate, error) {
	q := url.Values{}
	q.Set("radius", fmt.Sprintf("%.0f", area.RadiusKm*1000))
	q.Set("lon", fmt.Sprintf("%f", area.Center.Longitude))
	q.Set("lat", fmt.Sprintf("%f", area.Center.Latitude))
	q.Set("format", "geojson")
	q.Set("apikey", p.apiKey)
	if len(categories) > 0 {
		q.Set("kinds", strings.Join(categories, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/places/radius?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create opentripmap request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: opentripmap: %v", types.ErrProviderUnavailable, err)
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

	var decoded struct {
		Features []openTripMapFeature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: opentripmap: malformed response: %v", types.ErrProviderUnavailable, err)
	}

	candidates := make([]types.POICandidate, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		if f.Properties.Name == "" || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		kinds := strings.Split(f.Properties.Kinds, ",")
		category := ""
		if len(kinds) > 0 {
			category = kinds[0]
		}
		candidates = append(candidates, types.POICandidate{
			ID:   f.Properties.XID,
			Name: f.Properties.Name,
			Coordinates: types.GeoPoint{
				Latitude:  f.Geometry.Coordinates[1],
				Longitude: f.Geometry.Coordinates[0],
			},
			Category: category,
			// OpenTripMap rates 0-3h; normalize onto the 0-5 scale the rest
			// of the pipeline uses.
			Rating:          f.Properties.Rate / 3.0 * 5.0,
			SourceProviders: []string{p.Name()},
			Kinds:           kinds,
		})
	}
	return candidates, nil
}
