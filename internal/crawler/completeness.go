package crawler

import "github.com/leafline/dispensary-cli/internal/model"

// Completeness weights sum to 100. Each weight is earned by the presence of
// its field; absence never subtracts, so the score is monotonic in how many
// optional fields are populated.
const (
	completenessName    = 10
	completenessStreet  = 10
	completenessPhone   = 10
	completenessWebsite = 15
	completenessLogo    = 10
	completenessPhotos  = 15
	completenessHours   = 10
	completenessRating  = 10
	completenessReviews = 10
)

// CompletenessScore returns the 0-100 data completeness score for a
// dispensary record as assembled by the crawler.
func CompletenessScore(d *model.Dispensary) int {
	score := 0
	if d.Name != "" {
		score += completenessName
	}
	if d.AddressStreet != "" {
		score += completenessStreet
	}
	if d.Phone != "" {
		score += completenessPhone
	}
	if d.Website != "" {
		score += completenessWebsite
	}
	if d.LogoURL != "" {
		score += completenessLogo
	}
	if len(d.Photos) > 0 {
		score += completenessPhotos
	}
	if d.Hours != nil && len(d.Hours.WeekdayText) > 0 {
		score += completenessHours
	}
	if d.GoogleRating > 0 {
		score += completenessRating
	}
	if d.GoogleReviewCount > 0 {
		score += completenessReviews
	}
	return score
}
