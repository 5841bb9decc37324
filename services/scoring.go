package services

import (
	"math"

	"tesla-finder/models"
)

// Balance ratings by composite score.
const (
	RatingSweetSpot    = "Sweet Spot"
	RatingBalanced     = "Balanced"
	RatingOutlier      = "Outlier"
	RatingInsufficient = "Insufficient Data"
)

// balanceMinYear excludes implausible years from the year statistics.
const balanceMinYear = 2000

type dimension struct {
	mean, stdev float64
	ideal       float64
	usable      bool
}

// ScoreBalance computes the "sweet spot" z-scores for each listing. Each
// dimension is re-centred on its ideal value (lowest price, newest year,
// lowest mileage) so a perfect listing scores 0. A dimension with fewer
// than two known values contributes 0. The result is parallel to records.
func ScoreBalance(records []*models.Listing) []models.BalanceScore {
	scores := make([]models.BalanceScore, len(records))
	if len(records) < 2 {
		for i := range scores {
			scores[i].Rating = RatingInsufficient
		}
		return scores
	}

	var prices, years, mileages []float64
	for _, l := range records {
		if v, ok := priceValue(l); ok {
			prices = append(prices, v)
		}
		if v, ok := yearValue(l); ok {
			years = append(years, v)
		}
		if v, ok := mileageValue(l); ok {
			mileages = append(mileages, v)
		}
	}

	priceDim := newDimension(prices, minOf)
	yearDim := newDimension(years, maxOf)
	mileageDim := newDimension(mileages, minOf)

	for i, l := range records {
		s := &scores[i]
		if v, ok := priceValue(l); ok {
			s.PriceZ = priceDim.z(v)
		}
		if v, ok := yearValue(l); ok {
			s.YearZ = yearDim.z(v)
		}
		if v, ok := mileageValue(l); ok {
			s.MileageZ = mileageDim.z(v)
		}
		s.Composite = math.Sqrt(s.PriceZ*s.PriceZ + s.YearZ*s.YearZ + s.MileageZ*s.MileageZ)
		s.Rating = rateComposite(s.Composite)
	}
	return scores
}

func rateComposite(c float64) string {
	switch {
	case c <= 0.75:
		return RatingSweetSpot
	case c <= 1.5:
		return RatingBalanced
	default:
		return RatingOutlier
	}
}

func newDimension(values []float64, ideal func([]float64) float64) dimension {
	if len(values) < 2 {
		return dimension{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	// sample standard deviation
	stdev := math.Sqrt(sq / float64(len(values)-1))
	if stdev == 0 {
		return dimension{}
	}
	return dimension{mean: mean, stdev: stdev, ideal: ideal(values), usable: true}
}

// z returns the distance of v from the dimension's ideal in standard deviations.
func (d dimension) z(v float64) float64 {
	if !d.usable {
		return 0
	}
	return (v-d.mean)/d.stdev - (d.ideal-d.mean)/d.stdev
}

func priceValue(l *models.Listing) (float64, bool) {
	if l.Price.Amount == nil || *l.Price.Amount <= 0 {
		return 0, false
	}
	return float64(*l.Price.Amount), true
}

func yearValue(l *models.Listing) (float64, bool) {
	if l.Year == nil || *l.Year <= balanceMinYear {
		return 0, false
	}
	return float64(*l.Year), true
}

func mileageValue(l *models.Listing) (float64, bool) {
	if l.MileageKm == nil {
		return 0, false
	}
	return float64(*l.MileageKm), true
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Max(m, v)
	}
	return m
}
