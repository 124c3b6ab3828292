// Package rating blends heterogeneous, partially-available trust signals
// into the single 0-5 rating shown on the storefront, with a confidence
// score reflecting how much of the signal bag was actually present.
package rating

import "math"

// Signals is the input bag. Every field is independently optional; a nil
// field simply drops out of the weighted average instead of dragging it
// down.
type Signals struct {
	SupplierStar     *float64 `json:"supplierStar,omitempty"`     // supplier star rating, 0-5
	Sentiment        *float64 `json:"sentiment,omitempty"`        // [-1,1] or [0,1], auto-detected
	OrderVolume      *float64 `json:"orderVolume,omitempty"`      // lifetime orders
	Recency          *float64 `json:"recency,omitempty"`          // pre-normalized [0,1]
	ImageCount       *int     `json:"imageCount,omitempty"`       // richness proxy
	PriceCompetitive *float64 `json:"priceCompetitive,omitempty"` // pre-normalized [0,1]
	PenaltySeverity  *float64 `json:"penaltySeverity,omitempty"`  // quality penalty [0,1]
}

// Result is the computed rating
type Result struct {
	DisplayedRating float64            `json:"displayedRating"` // [0,5], one decimal
	Confidence      float64            `json:"confidence"`      // [0,1]
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
}

// Signal weights. Absent signals do not count toward the denominator.
const (
	weightSupplier  = 40.0
	weightSentiment = 12.0
	weightVolume    = 8.0
	weightRecency   = 8.0
	weightImages    = 5.0
	weightPrice     = 4.0
	totalWeight     = weightSupplier + weightSentiment + weightVolume + weightRecency + weightImages + weightPrice

	volumeCap   = 10000.0
	imageCap    = 30.0
	neutralStar = 4.0
	neutralConf = 0.2
)

// Compute blends the available signals into a displayed rating. It is a
// pure function: deterministic for identical input and total, never
// panicking on any signal combination. With no signals at all it returns
// the fixed neutral fallback {4.0, 0.2}.
func Compute(s Signals) Result {
	breakdown := make(map[string]float64)
	var weightedSum, usedWeight float64

	use := func(name string, score, weight float64) {
		breakdown[name] = round1(score)
		weightedSum += score * weight
		usedWeight += weight
	}

	if s.SupplierStar != nil {
		use("supplier", clamp(*s.SupplierStar, 0, 5), weightSupplier)
	}
	if s.Sentiment != nil {
		use("sentiment", sentimentScore(*s.Sentiment), weightSentiment)
	}
	if s.OrderVolume != nil {
		use("volume", volumeScore(*s.OrderVolume), weightVolume)
	}
	if s.Recency != nil {
		use("recency", clamp(*s.Recency, 0, 1)*5, weightRecency)
	}
	if s.ImageCount != nil {
		use("images", imageScore(*s.ImageCount), weightImages)
	}
	if s.PriceCompetitive != nil {
		use("price", clamp(*s.PriceCompetitive, 0, 1)*5, weightPrice)
	}

	if usedWeight == 0 {
		return Result{DisplayedRating: neutralStar, Confidence: neutralConf}
	}

	rating := weightedSum / usedWeight

	// Quality penalty: a 3-5% multiplicative haircut scaled by severity.
	severity := 0.0
	if s.PenaltySeverity != nil {
		severity = clamp(*s.PenaltySeverity, 0, 1)
	}
	penalty := 0.03 + 0.02*severity
	rating *= 1 - penalty

	confidence := usedWeight / totalWeight
	if s.OrderVolume != nil {
		confidence += 0.2 * (volumeScore(*s.OrderVolume) / 5)
	}

	return Result{
		DisplayedRating: round1(clamp(rating, 0, 5)),
		Confidence:      clamp(confidence, 0, 1),
		Breakdown:       breakdown,
	}
}

// sentimentScore maps sentiment onto [0,5]. Inputs arrive in either
// [-1,1] or [0,1]; a negative value is the only reliable tell for the
// wider range, so non-negative inputs are read as [0,1].
func sentimentScore(v float64) float64 {
	if v < 0 {
		return clamp((v+1)/2, 0, 1) * 5
	}
	if v > 1 {
		return 5
	}
	return v * 5
}

// volumeScore maps order volume onto [0,5] on a log scale, saturating at
// the volume cap.
func volumeScore(v float64) float64 {
	if v < 0 {
		v = 0
	}
	score := math.Log10(1+v) / math.Log10(1+volumeCap) * 5
	return clamp(score, 0, 5)
}

func imageScore(count int) float64 {
	if count < 0 {
		count = 0
	}
	return clamp(float64(count)/imageCap, 0, 1) * 5
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
