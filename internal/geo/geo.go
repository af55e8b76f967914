// Package geo resolves coordinates to a human-readable place name for the
// agent's conversation context. Lookups are strictly best-effort: every
// failure path yields the same fallback string and never an error.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voicechat-platform/internal/config"
	"voicechat-platform/pkg/logger"
)

// FallbackLocation is returned whenever a lookup cannot produce a place name.
const FallbackLocation = "Location not available"

type Service struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewService builds the geocoding client. An empty API key disables lookups;
// Lookup then short-circuits to the fallback.
func NewService(cfg config.GeoConfig) *Service {
	return &Service{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
}

type geocodeResponse struct {
	Results []struct {
		Components struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			Country string `json:"country"`
		} `json:"components"`
	} `json:"results"`
}

// Lookup reverse-geocodes the coordinates to "City, Country".
func (s *Service) Lookup(ctx context.Context, lat, lon float64) string {
	if s.apiKey == "" {
		return FallbackLocation
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("%f+%f", lat, lon))
	q.Set("key", s.apiKey)
	q.Set("limit", "1")
	q.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/geocode/v1/json?"+q.Encode(), nil)
	if err != nil {
		return FallbackLocation
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		logger.From(ctx).Warn("geocode lookup failed", "err", err)
		return FallbackLocation
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.From(ctx).Warn("geocode lookup failed", "status", resp.StatusCode)
		return FallbackLocation
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FallbackLocation
	}
	if len(out.Results) == 0 {
		return FallbackLocation
	}

	c := out.Results[0].Components
	city := c.City
	if city == "" {
		city = c.Town
	}
	if city == "" {
		city = c.Village
	}
	switch {
	case city != "" && c.Country != "":
		return city + ", " + c.Country
	case c.Country != "":
		return c.Country
	default:
		return FallbackLocation
	}
}
