package customsearch

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Mention is a categorized listing discovered via search.
type Mention struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Listings groups discovered listing mentions. Leafly and Weedmaps get
// dedicated slots, first match wins; Other holds up to three results
// excluding Google and Yelp domains.
type Listings struct {
	Leafly   *Mention
	Weedmaps *Mention
	Other    []Mention
}

const (
	maxOtherMentions = 3
	maxMenuMentions  = 3
	resultsPerQuery  = 5
)

var licensePattern = regexp.MustCompile(`(?i)license[:\s]+([A-Z0-9-]+)`)

// FindListingMentions issues three fixed queries and buckets the results.
// Callers treat mention discovery as best-effort: a returned error means
// the shape is incomplete, not that the caller should abort.
func FindListingMentions(ctx context.Context, c Client, name, city, state string) (Listings, error) {
	queries := []string{
		name + " " + city + " " + state + " Leafly",
		name + " " + city + " " + state + " Weedmaps",
		name + " " + city + " dispensary reviews",
	}

	var listings Listings
	for _, query := range queries {
		items, err := c.Search(ctx, query, resultsPerQuery)
		if err != nil {
			return Listings{}, eris.Wrap(err, "customsearch: listing mentions")
		}

		for _, item := range items {
			link := strings.ToLower(item.Link)
			mention := Mention{URL: item.Link, Title: item.Title, Snippet: item.Snippet}

			switch {
			case strings.Contains(link, "leafly.com") && listings.Leafly == nil:
				listings.Leafly = &mention
			case strings.Contains(link, "weedmaps.com") && listings.Weedmaps == nil:
				listings.Weedmaps = &mention
			case !strings.Contains(link, "google.com") &&
				!strings.Contains(link, "yelp.com") &&
				len(listings.Other) < maxOtherMentions:
				listings.Other = append(listings.Other, mention)
			}
		}
	}

	return listings, nil
}

// FindMenuMentions searches for menu and pricing pages, returning at most
// three results.
func FindMenuMentions(ctx context.Context, c Client, name, city, state string) ([]Mention, error) {
	items, err := c.Search(ctx, name+" "+city+" "+state+" menu prices", maxMenuMentions)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: menu mentions")
	}

	mentions := make([]Mention, 0, len(items))
	for _, item := range items {
		mentions = append(mentions, Mention{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
	}
	if len(mentions) > maxMenuMentions {
		mentions = mentions[:maxMenuMentions]
	}
	return mentions, nil
}

// FindLicenseNumber extracts the first license-number pattern found in
// result snippets, or empty if none match.
func FindLicenseNumber(ctx context.Context, c Client, name, state string) (string, error) {
	items, err := c.Search(ctx, name+" "+state+" cannabis license number", maxMenuMentions)
	if err != nil {
		return "", eris.Wrap(err, "customsearch: license number")
	}

	for _, item := range items {
		if match := licensePattern.FindStringSubmatch(item.Snippet); match != nil {
			return match[1], nil
		}
	}
	return "", nil
}
