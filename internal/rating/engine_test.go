package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestComputeNoSignalsNeutralFallback(t *testing.T) {
	res := Compute(Signals{})
	assert.Equal(t, 4.0, res.DisplayedRating, "fallback rating is exactly 4.0")
	assert.Equal(t, 0.2, res.Confidence, "fallback confidence is exactly 0.2")
}

func TestComputeSupplierStarOnly(t *testing.T) {
	res := Compute(Signals{SupplierStar: floatPtr(5)})

	// 5 * (1 - 0.03) = 4.85, rounded to one decimal.
	assert.InDelta(t, 4.85, res.DisplayedRating, 0.06)
	assert.InDelta(t, 40.0/77.0, res.Confidence, 1e-9, "confidence is usedWeight/totalWeight with no volume boost")
}

func TestComputeIsDeterministic(t *testing.T) {
	s := Signals{
		SupplierStar: floatPtr(4.2),
		Sentiment:    floatPtr(0.8),
		OrderVolume:  floatPtr(1500),
		ImageCount:   intPtr(12),
	}
	first := Compute(s)
	second := Compute(s)
	assert.Equal(t, first, second)
}

func TestComputeTotalOnHostileInput(t *testing.T) {
	res := Compute(Signals{
		SupplierStar:     floatPtr(99),
		Sentiment:        floatPtr(-7),
		OrderVolume:      floatPtr(-5),
		Recency:          floatPtr(3),
		ImageCount:       intPtr(-1),
		PriceCompetitive: floatPtr(2),
		PenaltySeverity:  floatPtr(9),
	})
	assert.GreaterOrEqual(t, res.DisplayedRating, 0.0)
	assert.LessOrEqual(t, res.DisplayedRating, 5.0)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestSentimentAutoRangeDetection(t *testing.T) {
	assert.Equal(t, 0.0, sentimentScore(-1), "bipolar minimum maps to 0")
	assert.InDelta(t, 1.25, sentimentScore(-0.5), 1e-9, "negative values read as [-1,1]")
	assert.InDelta(t, 2.5, sentimentScore(0.5), 1e-9, "non-negative values read as [0,1]")
	assert.Equal(t, 5.0, sentimentScore(1))
	assert.Equal(t, 5.0, sentimentScore(1.7), "overshoot clamps")
}

func TestVolumeScoreLogCurve(t *testing.T) {
	assert.Equal(t, 0.0, volumeScore(0))
	assert.InDelta(t, 5.0, volumeScore(10000), 1e-6, "cap volume saturates the scale")
	assert.Equal(t, 5.0, volumeScore(1e9), "beyond the cap clamps at 5")

	mid := volumeScore(100)
	assert.Greater(t, mid, 2.0, "log curve rewards early volume")
	assert.Less(t, mid, 3.0)
}

func TestImageScoreCaps(t *testing.T) {
	assert.Equal(t, 0.0, imageScore(0))
	assert.InDelta(t, 2.5, imageScore(15), 1e-9)
	assert.Equal(t, 5.0, imageScore(30))
	assert.Equal(t, 5.0, imageScore(500))
}

func TestConfidenceVolumeBoost(t *testing.T) {
	without := Compute(Signals{SupplierStar: floatPtr(4)})
	with := Compute(Signals{SupplierStar: floatPtr(4), OrderVolume: floatPtr(10000)})

	assert.Greater(t, with.Confidence, without.Confidence)
	// Boost is at most +0.2 on top of the weight fraction.
	maxExpected := (weightSupplier+weightVolume)/totalWeight + 0.2
	assert.LessOrEqual(t, with.Confidence, maxExpected+1e-9)
}

func TestPenaltySeverityScaling(t *testing.T) {
	mild := Compute(Signals{SupplierStar: floatPtr(5), PenaltySeverity: floatPtr(0)})
	harsh := Compute(Signals{SupplierStar: floatPtr(5), PenaltySeverity: floatPtr(1)})

	assert.Greater(t, mild.DisplayedRating, harsh.DisplayedRating)
	// Severity 1 applies the full 5% haircut: 5 * 0.95 = 4.75.
	assert.InDelta(t, 4.75, harsh.DisplayedRating, 0.06)
}
