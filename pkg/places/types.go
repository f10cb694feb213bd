package places

// SearchPage is one page of search results plus the continuation token,
// if any. The provider caps result sets at roughly 60 across pages.
type SearchPage struct {
	Results       []Place
	NextPageToken string
}

// Place is a summary result from text or nearby search.
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	BusinessStatus   string   `json:"business_status"`
	Types            []string `json:"types"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Geometry         Geometry `json:"geometry"`
	FormattedAddress string   `json:"formatted_address"`
}

// PlaceDetails is the full record from the Details endpoint.
type PlaceDetails struct {
	PlaceID                  string             `json:"place_id"`
	Name                     string             `json:"name"`
	FormattedAddress         string             `json:"formatted_address"`
	AddressComponents        []AddressComponent `json:"address_components"`
	Geometry                 Geometry           `json:"geometry"`
	FormattedPhoneNumber     string             `json:"formatted_phone_number"`
	InternationalPhoneNumber string             `json:"international_phone_number"`
	Website                  string             `json:"website"`
	OpeningHours             *OpeningHours      `json:"opening_hours"`
	Photos                   []Photo            `json:"photos"`
	Rating                   float64            `json:"rating"`
	UserRatingsTotal         int                `json:"user_ratings_total"`
	Types                    []string           `json:"types"`
	BusinessStatus           string             `json:"business_status"`
	URL                      string             `json:"url"`
}

// Phone returns the formatted phone number, falling back to international.
func (d *PlaceDetails) Phone() string {
	if d.FormattedPhoneNumber != "" {
		return d.FormattedPhoneNumber
	}
	return d.InternationalPhoneNumber
}

// AddressComponent is a single typed address fragment.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Geometry holds a place's coordinates.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OpeningHours is the provider's opening-hours structure.
type OpeningHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text"`
}

// Photo is a photo reference usable with PhotoURL.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// GeocodeResult is a single result from the Geocoding API.
type GeocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []AddressComponent `json:"address_components"`
	Geometry          Geometry           `json:"geometry"`
}

type searchResponse struct {
	Results       []Place `json:"results"`
	Status        string  `json:"status"`
	NextPageToken string  `json:"next_page_token"`
}

type detailsResponse struct {
	Result PlaceDetails `json:"result"`
	Status string       `json:"status"`
}

type geocodeResponse struct {
	Results []GeocodeResult `json:"results"`
	Status  string          `json:"status"`
}
