package border

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

var _ Lookup = (*ReverseGeocodeLookup)(nil)

// ReverseGeocodeLookup resolves countries against a Nominatim-compatible
// reverse endpoint. Zoom 3 returns country-level results only, which keeps
// the payload tiny.
type ReverseGeocodeLookup struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewReverseGeocodeLookup(baseURL, userAgent string, timeout time.Duration) *ReverseGeocodeLookup {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &ReverseGeocodeLookup{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

func (l *ReverseGeocodeLookup) CountryOf(ctx context.Context, p types.GeoPoint) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=json&zoom=3",
		l.baseURL, p.Latitude, p.Longitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: reverse geocode: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", &types.ProviderStatusError{
			Provider: "reverse-geocode",
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	var result struct {
		Address struct {
			CountryCode string `json:"country_code"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if result.Address.CountryCode == "" {
		return "", fmt.Errorf("no country for (%.4f, %.4f)", p.Latitude, p.Longitude)
	}
	return strings.ToUpper(result.Address.CountryCode), nil
}
