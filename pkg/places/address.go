package places

import (
	"slices"
	"strings"
)

// ParsedAddress is a normalized address assembled from typed components.
// Unmatched component types are ignored; missing types leave fields empty.
type ParsedAddress struct {
	Street    string
	City      string
	County    string
	State     string
	StateAbbr string
	Zip       string
	Country   string
}

// ParseAddressComponents maps provider address components onto a
// ParsedAddress by component type tag.
func ParseAddressComponents(components []AddressComponent) ParsedAddress {
	var parsed ParsedAddress

	for _, component := range components {
		types := component.Types

		if slices.Contains(types, "street_number") {
			parsed.Street = component.LongName + " "
		}
		if slices.Contains(types, "route") {
			parsed.Street += component.LongName
		}
		if slices.Contains(types, "locality") {
			parsed.City = component.LongName
		}
		if slices.Contains(types, "administrative_area_level_2") {
			parsed.County = strings.TrimSuffix(component.LongName, " County")
		}
		if slices.Contains(types, "administrative_area_level_1") {
			parsed.State = component.LongName
			parsed.StateAbbr = component.ShortName
		}
		if slices.Contains(types, "postal_code") {
			parsed.Zip = component.LongName
		}
		if slices.Contains(types, "country") {
			parsed.Country = component.LongName
		}
	}

	parsed.Street = strings.TrimSpace(parsed.Street)
	return parsed
}

// dispensaryKeywords are name fragments that identify a dispensary.
var dispensaryKeywords = []string{"dispensary", "cannabis", "marijuana", "weed", "collective"}

// IsValidDispensary reports whether a search result looks like an open
// dispensary. The name-keyword OR store-type test deliberately
// over-accepts borderline cases rather than under-accepting.
func IsValidDispensary(place Place) bool {
	if place.BusinessStatus == "CLOSED_PERMANENTLY" || place.BusinessStatus == "CLOSED_TEMPORARILY" {
		return false
	}

	name := strings.ToLower(place.Name)
	for _, keyword := range dispensaryKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}

	return slices.Contains(place.Types, "store")
}
