// Package geo manages the state and county reference data that scopes
// crawls and rankings, and assigns counties to dispensaries that were
// stored without one.
package geo

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// CanonicalCountyName normalizes a county name for matching: title case,
// trimmed, with any trailing "County"/"Parish"/"Borough" designator removed.
// "ST. LOUIS COUNTY" and "St. Louis" both canonicalize to "St. Louis".
func CanonicalCountyName(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range []string{" county", " parish", " borough", " census area"} {
		if n := len(name) - len(suffix); n > 0 && strings.EqualFold(name[n:], suffix) {
			name = name[:n]
			break
		}
	}
	return titleCaser.String(strings.ToLower(name))
}

// CanonicalStateAbbr normalizes a state abbreviation to its two-letter
// uppercase form. Returns "" if the input is not two letters.
func CanonicalStateAbbr(abbr string) string {
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	if len(abbr) != 2 {
		return ""
	}
	return abbr
}

// stateFIPS maps Census state FIPS codes to USPS abbreviations. TIGER
// county shapefiles carry STATEFP rather than the abbreviation.
var stateFIPS = map[string]string{
	"01": "AL", "02": "AK", "04": "AZ", "05": "AR", "06": "CA",
	"08": "CO", "09": "CT", "10": "DE", "11": "DC", "12": "FL",
	"13": "GA", "15": "HI", "16": "ID", "17": "IL", "18": "IN",
	"19": "IA", "20": "KS", "21": "KY", "22": "LA", "23": "ME",
	"24": "MD", "25": "MA", "26": "MI", "27": "MN", "28": "MS",
	"29": "MO", "30": "MT", "31": "NE", "32": "NV", "33": "NH",
	"34": "NJ", "35": "NM", "36": "NY", "37": "NC", "38": "ND",
	"39": "OH", "40": "OK", "41": "OR", "42": "PA", "44": "RI",
	"45": "SC", "46": "SD", "47": "TN", "48": "TX", "49": "UT",
	"50": "VT", "51": "VA", "53": "WA", "54": "WV", "55": "WI",
	"56": "WY", "72": "PR",
}

// StateAbbrForFIPS returns the USPS abbreviation for a state FIPS code.
func StateAbbrForFIPS(fips string) (string, bool) {
	abbr, ok := stateFIPS[fips]
	return abbr, ok
}
