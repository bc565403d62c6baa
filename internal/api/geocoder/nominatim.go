package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rhymeas/tripweaver/internal/types"
)

var _ Provider = (*NominatimProvider)(nil)

// NominatimProvider geocodes against a Nominatim-compatible endpoint.
type NominatimProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewNominatimProvider(baseURL, userAgent string, timeout time.Duration) *NominatimProvider {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &NominatimProvider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

type nominatimResult struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
	Address    struct {
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		County      string `json:"county"`
	} `json:"address"`
	DisplayName string `json:"display_name"`
}

func (p *NominatimProvider) Search(ctx context.Context, name string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&addressdetails=1&limit=5",
		p.baseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: nominatim: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.ProviderStatusError{
			Provider: "nominatim",
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		region := r.Address.State
		if region == "" {
			region = r.Address.County
		}
		candidates = append(candidates, Candidate{
			Waypoint: types.Waypoint{
				Name:        name,
				Latitude:    lat,
				Longitude:   lon,
				CountryCode: strings.ToUpper(r.Address.CountryCode),
				AdminRegion: region,
			},
			Importance: r.Importance,
		})
	}
	return candidates, nil
}
