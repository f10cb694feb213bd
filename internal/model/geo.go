package model

// State is a root geographic unit.
type State struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// County belongs to exactly one state. Membership transitively implies
// state membership for any dispensary assigned to the county.
type County struct {
	ID        int64  `json:"id"`
	StateID   int64  `json:"state_id"`
	Name      string `json:"name"`
	StateAbbr string `json:"state_abbr,omitempty"`
}
