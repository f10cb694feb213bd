package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leafline/dispensary-cli/internal/model"
)

func fullDispensary() *model.Dispensary {
	return &model.Dispensary{
		Name:              "Green Leaf Dispensary",
		AddressStreet:     "420 High St",
		Phone:             "(417) 555-0100",
		Website:           "https://example.com",
		LogoURL:           "https://photos.example.com/p1",
		Photos:            []string{"https://photos.example.com/p1"},
		Hours:             &model.OpeningHours{WeekdayText: []string{"Monday: 9-5"}},
		GoogleRating:      4.5,
		GoogleReviewCount: 120,
	}
}

func TestCompletenessScore(t *testing.T) {
	assert.Equal(t, 0, CompletenessScore(&model.Dispensary{}))
	assert.Equal(t, 100, CompletenessScore(fullDispensary()))

	noWebsite := fullDispensary()
	noWebsite.Website = ""
	assert.Equal(t, 85, CompletenessScore(noWebsite))

	nameOnly := &model.Dispensary{Name: "Green Leaf"}
	assert.Equal(t, 10, CompletenessScore(nameOnly))
}

// Adding a field never lowers the score.
func TestCompletenessScoreMonotonic(t *testing.T) {
	d := &model.Dispensary{}
	prev := CompletenessScore(d)

	steps := []func(){
		func() { d.Name = "Green Leaf" },
		func() { d.AddressStreet = "420 High St" },
		func() { d.Phone = "555" },
		func() { d.Website = "https://example.com" },
		func() { d.LogoURL = "logo" },
		func() { d.Photos = []string{"p1"} },
		func() { d.Hours = &model.OpeningHours{WeekdayText: []string{"Mon"}} },
		func() { d.GoogleRating = 4 },
		func() { d.GoogleReviewCount = 10 },
	}
	for i, step := range steps {
		step()
		score := CompletenessScore(d)
		assert.GreaterOrEqual(t, score, prev, "step %d", i)
		prev = score
	}
	assert.Equal(t, 100, prev)
}
