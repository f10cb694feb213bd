package model

import "time"

// ListingMention is a single third-party listing discovered via web search.
type ListingMention struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ExternalListings groups the mentions discovered for a dispensary.
// Leafly and Weedmaps get dedicated slots; anything else lands in Other.
type ExternalListings struct {
	Leafly   *ListingMention  `json:"leafly"`
	Weedmaps *ListingMention  `json:"weedmaps"`
	Other    []ListingMention `json:"other"`
}

// Empty reports whether no mentions were discovered.
func (e ExternalListings) Empty() bool {
	return e.Leafly == nil && e.Weedmaps == nil && len(e.Other) == 0
}

// Dispensary is a single business listing record. GooglePlaceID is the
// stable external key; the crawler is the sole writer of the enrichment
// fields, the ranking calculator the sole writer of CompositeScore.
type Dispensary struct {
	ID                int64             `json:"id"`
	GooglePlaceID     string            `json:"google_place_id"`
	Name              string            `json:"name"`
	AddressStreet     string            `json:"address_street,omitempty"`
	City              string            `json:"city,omitempty"`
	CountyID          *int64            `json:"county_id,omitempty"`
	StateID           *int64            `json:"state_id,omitempty"`
	Zip               string            `json:"zip,omitempty"`
	Lat               float64           `json:"lat"`
	Lng               float64           `json:"lng"`
	Phone             string            `json:"phone,omitempty"`
	Website           string            `json:"website,omitempty"`
	LogoURL           string            `json:"logo_url,omitempty"`
	Photos            []string          `json:"photos,omitempty"`
	Hours             *OpeningHours     `json:"hours,omitempty"`
	LicenseNumber     string            `json:"license_number,omitempty"`
	GoogleRating      float64           `json:"google_rating"`
	GoogleReviewCount int               `json:"google_review_count"`
	ExternalListings  ExternalListings  `json:"external_listings"`
	MenuMentions      []ListingMention  `json:"menu_mentions,omitempty"`
	CompletenessScore int               `json:"data_completeness_score"`
	IsActive          bool              `json:"is_active"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// OpeningHours mirrors the provider's opening-hours structure.
type OpeningHours struct {
	OpenNow     bool     `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

// VoteCounts holds the pre-aggregated vote totals for a dispensary.
type VoteCounts struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	NetVotes  int `json:"net_votes"`
}
