// Package places wraps the Google Places API: text/nearby search with
// pagination tokens, place details, photo URL construction, and geocoding.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL          = "https://maps.googleapis.com/maps/api/place"
	defaultGeocodingBaseURL = "https://maps.googleapis.com/maps/api/geocode"

	// Page tokens are not valid immediately after issue; the provider
	// requires a settling delay before they can be redeemed.
	defaultPageTokenDelay = 2 * time.Second

	defaultPhotoMaxWidth = 800

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// detailFields is the field mask requested from the Details endpoint.
var detailFields = strings.Join([]string{
	"place_id",
	"name",
	"formatted_address",
	"address_components",
	"geometry",
	"formatted_phone_number",
	"international_phone_number",
	"website",
	"opening_hours",
	"photos",
	"rating",
	"user_ratings_total",
	"types",
	"business_status",
	"url",
}, ",")

// Client performs Google Places API operations.
type Client interface {
	// SearchDispensaries runs a text search for dispensaries in a location.
	SearchDispensaries(ctx context.Context, location string) (*SearchPage, error)

	// NearbySearch finds dispensaries around a coordinate.
	NearbySearch(ctx context.Context, lat, lng float64, radiusMeters int) (*SearchPage, error)

	// NextPage redeems a pagination token after the provider-mandated delay.
	NextPage(ctx context.Context, token string) (*SearchPage, error)

	// PlaceDetails fetches the full record for a place.
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)

	// PhotoURL builds a photo URL from a photo reference. No network call.
	PhotoURL(photoReference string, maxWidth int) string

	// Geocode resolves a free-form address to a geocoding result.
	Geocode(ctx context.Context, address string) (*GeocodeResult, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default Places API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithGeocodingBaseURL overrides the default Geocoding API base URL.
func WithGeocodingBaseURL(u string) Option {
	return func(c *httpClient) {
		c.geocodingBaseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageTokenDelay overrides the settle delay before redeeming a page token.
func WithPageTokenDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.pageTokenDelay = d
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey           string
	baseURL          string
	geocodingBaseURL string
	pageTokenDelay   time.Duration
	limiter          *rate.Limiter
	http             *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:           apiKey,
		baseURL:          defaultBaseURL,
		geocodingBaseURL: defaultGeocodingBaseURL,
		pageTokenDelay:   defaultPageTokenDelay,
		limiter:          rate.NewLimiter(1, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchDispensaries(ctx context.Context, location string) (*SearchPage, error) {
	params := url.Values{
		"query": {"cannabis dispensary in " + location},
		"type":  {"store"},
		"key":   {c.apiKey},
	}
	return c.searchPage(ctx, c.baseURL+"/textsearch/json?"+params.Encode())
}

func (c *httpClient) NearbySearch(ctx context.Context, lat, lng float64, radiusMeters int) (*SearchPage, error) {
	params := url.Values{
		"location": {fmt.Sprintf("%f,%f", lat, lng)},
		"radius":   {fmt.Sprintf("%d", radiusMeters)},
		"keyword":  {"cannabis dispensary"},
		"key":      {c.apiKey},
	}
	return c.searchPage(ctx, c.baseURL+"/nearbysearch/json?"+params.Encode())
}

func (c *httpClient) NextPage(ctx context.Context, token string) (*SearchPage, error) {
	if token == "" {
		return &SearchPage{}, nil
	}

	select {
	case <-time.After(c.pageTokenDelay):
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "places: next page")
	}

	params := url.Values{
		"pagetoken": {token},
		"key":       {c.apiKey},
	}
	return c.searchPage(ctx, c.baseURL+"/textsearch/json?"+params.Encode())
}

func (c *httpClient) searchPage(ctx context.Context, reqURL string) (*SearchPage, error) {
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal search response")
	}

	// ZERO_RESULTS is success with an empty list; anything else non-OK is
	// a hard error for this call.
	if resp.Status != statusOK && resp.Status != statusZeroResults {
		return nil, eris.Errorf("places: search status %s", resp.Status)
	}

	return &SearchPage{
		Results:       resp.Results,
		NextPageToken: resp.NextPageToken,
	}, nil
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {detailFields},
		"key":      {c.apiKey},
	}

	body, err := c.get(ctx, c.baseURL+"/details/json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal details response")
	}

	if resp.Status != statusOK {
		return nil, eris.Errorf("places: details status %s for %s", resp.Status, placeID)
	}

	return &resp.Result, nil
}

func (c *httpClient) PhotoURL(photoReference string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = defaultPhotoMaxWidth
	}
	params := url.Values{
		"maxwidth":        {fmt.Sprintf("%d", maxWidth)},
		"photo_reference": {photoReference},
		"key":             {c.apiKey},
	}
	return c.baseURL + "/photo?" + params.Encode()
}

func (c *httpClient) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}

	body, err := c.get(ctx, c.geocodingBaseURL+"/json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal geocode response")
	}

	if resp.Status != statusOK || len(resp.Results) == 0 {
		return nil, eris.Errorf("places: geocode status %s", resp.Status)
	}

	return &resp.Results[0], nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
