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

var _ Provider = (*GeoapifyProvider)(nil)

// GeoapifyProvider searches a Geoapify-compatible places endpoint. It has no
// rating signal, so results carry a neutral default that a better-rated
// duplicate from another provider will win over during merge.
type GeoapifyProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

const geoapifyDefaultRating = 3.0

func NewGeoapifyProvider(baseURL, apiKey string, timeout time.Duration) *GeoapifyProvider {
	if baseURL == "" {
		baseURL = "https://api.geoapify.com"
	}
	return &GeoapifyProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *GeoapifyProvider) Name() string { return "geoapify" }

func (p *GeoapifyProvider) POIsNear(ctx context.Context, area SearchArea, categories []string) ([]types.POICandidate, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("circle:%f,%f,%.0f",
		area.Center.Longitude, area.Center.Latitude, area.RadiusKm*1000))
	q.Set("limit", "50")
	q.Set("apiKey", p.apiKey)
	if len(categories) > 0 {
		q.Set("categories", strings.Join(categories, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/v2/places?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geoapify request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: geoapify: %v", types.ErrProviderUnavailable, err)
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
		Features []struct {
			Properties struct {
				PlaceID    string   `json:"place_id"`
				Name       string   `json:"name"`
				Lat        float64  `json:"lat"`
				Lon        float64  `json:"lon"`
				Categories []string `json:"categories"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: geoapify: malformed response: %v", types.ErrProviderUnavailable, err)
	}

	candidates := make([]types.POICandidate, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		props := f.Properties
		if props.Name == "" {
			continue
		}
		category := ""
		if len(props.Categories) > 0 {
			category = props.Categories[0]
		}
		candidates = append(candidates, types.POICandidate{
			ID:              props.PlaceID,
			Name:            props.Name,
			Coordinates:     types.GeoPoint{Latitude: props.Lat, Longitude: props.Lon},
			Category:        category,
			Rating:          geoapifyDefaultRating,
			SourceProviders: []string{p.Name()},
			Kinds:           props.Categories,
		})
	}
	return candidates, nil
}
