package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Coordinates struct {
	Lat float64
	Lng float64
}

// Geocoder resolves a free-text address to coordinates. A nil result with a
// nil error means the address could not be resolved; callers treat both that
// and an error as "no coordinates".
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Coordinates, error)
}

// MapTiler geocodes through the MapTiler forward-geocoding API.
type MapTiler struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewMapTiler(apiKey string) *MapTiler {
	return &MapTiler{
		APIKey:  apiKey,
		BaseURL: "https://api.maptiler.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *MapTiler) Resolve(ctx context.Context, address string) (*Coordinates, error) {
	if m.APIKey == "" || len(address) < 4 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/geocoding/%s.json?key=%s", m.BaseURL, url.PathEscape(address), url.QueryEscape(m.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			// GeoJSON order: [lng, lat]
			Center []float64 `json:"center"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Center) < 2 {
		return nil, nil
	}
	return &Coordinates{
		Lat: payload.Features[0].Center[1],
		Lng: payload.Features[0].Center[0],
	}, nil
}
