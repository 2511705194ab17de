// Package geocoder talks to a Nominatim-compatible endpoint for forward and
// reverse geocoding.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"civicwatch/report"
)

// ErrNoMatch means the provider returned no result for the query. Provider
// outages and timeouts surface as report.ErrUpstreamUnavailable instead.
var ErrNoMatch = errors.New("no geocoding match")

// Location is a resolved place.
type Location struct {
	DisplayName string
	Latitude    float64
	Longitude   float64
}

// Geocoder resolves between addresses and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Nominatim is an HTTP client for the OSM Nominatim API (or any service
// speaking its JSON format).
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

const defaultTimeout = 10 * time.Second

func NewNominatim(baseURL, userAgent string) *Nominatim {
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (*Location, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	var results []searchResult
	if err := n.getJSON(ctx, "/search", q, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoMatch
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude in geocoder response: %v", report.ErrUpstreamUnavailable, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude in geocoder response: %v", report.ErrUpstreamUnavailable, err)
	}
	return &Location{
		DisplayName: results[0].DisplayName,
		Latitude:    lat,
		Longitude:   lng,
	}, nil
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("format", "json")

	var result reverseResult
	if err := n.getJSON(ctx, "/reverse", q, &result); err != nil {
		return "", err
	}
	if result.Error != "" || result.DisplayName == "" {
		return "", ErrNoMatch
	}
	return result.DisplayName, nil
}

func (n *Nominatim) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	// Nominatim's usage policy requires an identifying user agent.
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: geocoder returned %s", report.ErrUpstreamUnavailable, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding geocoder response: %v", report.ErrUpstreamUnavailable, err)
	}
	return nil
}

// FallbackLabel is the numeric place label used when reverse geocoding is
// unavailable.
func FallbackLabel(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}
