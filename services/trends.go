package services

import "finn-deal-finder/models"

// trendThresholdPercent is the change between the two halves of a history
// that counts as a real move rather than noise.
const trendThresholdPercent = 5.0

// AnalyzeTrend compares the average of the older half of a listing's priced
// observations with the newer half. points must be oldest first, as
// returned by the price history store.
func AnalyzeTrend(points []models.PricePoint) models.PriceTrend {
	prices := make([]int, 0, len(points))
	for _, p := range points {
		if p.Price != nil {
			prices = append(prices, *p.Price)
		}
	}
	if len(prices) < 2 {
		return models.PriceTrend{Direction: models.TrendInsufficientData}
	}

	half := len(prices) / 2
	first, second := averageOf(prices[:half]), averageOf(prices[half:])

	var change float64
	if first > 0 {
		change = (second - first) / first * 100
	}

	direction := models.TrendStable
	switch {
	case change < -trendThresholdPercent:
		direction = models.TrendDecreasing
	case change > trendThresholdPercent:
		direction = models.TrendIncreasing
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}

	return models.PriceTrend{
		Direction:     direction,
		ChangePercent: change,
		FirstAverage:  first,
		SecondAverage: second,
		Min:           lo,
		Max:           hi,
		Current:       prices[len(prices)-1],
	}
}

func averageOf(prices []int) float64 {
	var total float64
	for _, p := range prices {
		total += float64(p)
	}
	return total / float64(len(prices))
}
