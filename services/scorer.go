package services

import (
	"math"
	"sort"

	"finn-deal-finder/models"
	"finn-deal-finder/utils"
)

// NeutralScore is given when a price cannot be compared with anything.
const NeutralScore = 50

// DealScorer ranks listings against the other listings of the same search.
type DealScorer struct {
	logger *utils.Logger
}

func NewDealScorer(logger *utils.Logger) *DealScorer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &DealScorer{logger: logger}
}

// Score computes the price statistics of listings and a deal score for each
// one. It is a pure function of its input and keeps the input order.
func (s *DealScorer) Score(listings []models.Listing) (models.PriceStats, []models.ScoredListing) {
	stats := ComputeStats(listings)
	comparable := stats.Count >= 2

	scored := make([]models.ScoredListing, len(listings))
	for i, l := range listings {
		sl := models.ScoredListing{Listing: l, DealScore: NeutralScore}

		switch {
		case l.Price == nil:
			sl.PriceUnknown = true
		case comparable:
			sl.DealScore = ScoreFor(*l.Price, *stats.Average)
			savings := int(math.Round(*stats.Average - float64(*l.Price)))
			sl.Savings = &savings
		}
		sl.DealBand = models.BandFor(sl.DealScore)
		scored[i] = sl
	}

	s.logger.Debug("[scorer] Scored %d listings (%d priced)", len(listings), stats.Count)
	return stats, scored
}

// ScoreFor maps a price to [0,100] by its discount against the average:
// 50 at the average, rising by one point per percent below it.
func ScoreFor(price int, average float64) int {
	if average <= 0 {
		return NeutralScore
	}
	d := (average - float64(price)) / average
	score := math.Round(50 + d*100)
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return int(score)
}

// ComputeStats aggregates the listings that have a known price.
func ComputeStats(listings []models.Listing) models.PriceStats {
	prices := make([]int, 0, len(listings))
	for _, l := range listings {
		if l.Price != nil {
			prices = append(prices, *l.Price)
		}
	}

	stats := models.PriceStats{Count: len(prices)}
	if len(prices) == 0 {
		return stats
	}

	sort.Ints(prices)
	var total float64
	for _, p := range prices {
		total += float64(p)
	}
	avg := total / float64(len(prices))

	var median float64
	mid := len(prices) / 2
	if len(prices)%2 == 0 {
		median = float64(prices[mid-1]+prices[mid]) / 2
	} else {
		median = float64(prices[mid])
	}

	minPrice, maxPrice := prices[0], prices[len(prices)-1]
	stats.Average = &avg
	stats.Median = &median
	stats.Min = &minPrice
	stats.Max = &maxPrice
	return stats
}

// SortListings orders listings in place. Relevance sorts by score, then
// price, then extraction order; the other orders sort by their field and
// put listings without it last.
func SortListings(listings []models.ScoredListing, order models.SortOrder) {
	switch order {
	case models.SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			return priceLess(listings[i].Price, listings[j].Price, false)
		})
	case models.SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			return priceLess(listings[i].Price, listings[j].Price, true)
		})
	case models.SortDate:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i].PublishedAt, listings[j].PublishedAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			}
			return a.After(*b)
		})
	default:
		sort.SliceStable(listings, func(i, j int) bool {
			if listings[i].DealScore != listings[j].DealScore {
				return listings[i].DealScore > listings[j].DealScore
			}
			return priceLess(listings[i].Price, listings[j].Price, false)
		})
	}
}

// priceLess orders known prices before unknown ones.
func priceLess(a, b *int, desc bool) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	case desc:
		return *a > *b
	}
	return *a < *b
}
