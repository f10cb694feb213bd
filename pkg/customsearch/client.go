// Package customsearch wraps the Google Custom Search JSON API for
// third-party listing discovery.
package customsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Client performs web searches against a configured search engine.
type Client interface {
	Search(ctx context.Context, query string, num int) ([]Item, error)
}

// Item is a single search result.
type Item struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []Item `json:"items"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for search calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey   string
	engineID string
	baseURL  string
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a Custom Search API client.
func NewClient(apiKey, engineID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  defaultBaseURL,
		limiter:  rate.NewLimiter(2, 1),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, num int) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "customsearch: rate limit")
	}

	params := url.Values{
		"key": {c.apiKey},
		"cx":  {c.engineID},
		"q":   {query},
		"num": {fmt.Sprintf("%d", num)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("customsearch: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "customsearch: unmarshal response")
	}

	return result.Items, nil
}
