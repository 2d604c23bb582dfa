package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"finn-deal-finder/models"
	"finn-deal-finder/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(result *models.SearchResult) *models.InsightReport {
	report := &models.InsightReport{
		BandCounts:         make(map[models.DealBand]int),
		ListingsByLocation: make(map[string]int),
	}

	if result == nil || len(result.Listings) == 0 {
		return report
	}

	report.TotalListings = len(result.Listings)
	report.PricedListings = result.Stats.Count
	report.Stats = result.Stats

	for i := range result.Listings {
		l := &result.Listings[i]
		report.BandCounts[l.DealBand]++

		if l.Location != nil && *l.Location != "" {
			report.ListingsByLocation[*l.Location]++
		}

		if l.DealBand == models.BandGreat && l.Savings != nil && *l.Savings > 0 {
			report.PotentialSavings += *l.Savings
		}

		// Only compared prices make a deal
		if l.PriceUnknown || result.Stats.Count < 2 {
			continue
		}
		if report.BestDeal == nil ||
			l.DealScore > report.BestDeal.DealScore ||
			(l.DealScore == report.BestDeal.DealScore && *l.Price < *report.BestDeal.Price) {
			report.BestDeal = l
		}
	}

	report.Comparisons = FindComparisons(result.Listings)

	s.logger.Debug("[insights] %d listings, %d great deals", report.TotalListings, report.BandCounts[models.BandGreat])
	return report
}

// Print writes the report to w in the terminal format used by the CLI.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 FINN DEAL INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings  : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With a price    : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (NOK)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Stats.Count > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s\033[0m\n", formatNOK(*r.Stats.Average))
		fmt.Fprintf(w, "  Median price  : \033[1;32m%s\033[0m\n", formatNOK(*r.Stats.Median))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s\033[0m\n", formatNOK(float64(*r.Stats.Min)))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s\033[0m\n", formatNOK(float64(*r.Stats.Max)))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Deal bands
	fmt.Fprintf(w, "\033[1;33m  Deal Distribution\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  🔥 Great deals   : \033[1;32m%d\033[0m\n", r.BandCounts[models.BandGreat])
	fmt.Fprintf(w, "  👍 Good deals    : \033[1m%d\033[0m\n", r.BandCounts[models.BandGood])
	fmt.Fprintf(w, "  ·  Regular       : %d\n", r.BandCounts[models.BandRegular])
	if r.PotentialSavings > 0 {
		fmt.Fprintf(w, "  Potential savings on great deals : \033[1;32m%s\033[0m\n", formatNOK(float64(r.PotentialSavings)))
	}
	fmt.Fprintln(w)

	// Best deal
	if r.BestDeal != nil {
		fmt.Fprintf(w, "\033[1;33m  Best Deal\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.BestDeal.Title, 50))
		if r.BestDeal.Location != nil {
			fmt.Fprintf(w, "  Location : %s\n", *r.BestDeal.Location)
		}
		fmt.Fprintf(w, "  Price    : \033[1;32m%s\033[0m (score %d)\n",
			formatNOK(float64(*r.BestDeal.Price)), r.BestDeal.DealScore)
		fmt.Fprintf(w, "  Link     : %s\n", r.BestDeal.URL)
		for _, line := range DealSummary(*r.BestDeal) {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}

	if len(r.Comparisons) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Similar Items\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, g := range r.Comparisons {
			fmt.Fprintf(w, "  \033[1m%s\033[0m (%d)\n", g.Key, len(g.Listings))
			for _, l := range g.Listings {
				price := "no price"
				if l.Price != nil {
					price = formatNOK(float64(*l.Price))
				}
				fmt.Fprintf(w, "    %-12s score %3d  %s\n", price, l.DealScore, truncate(l.Title, 36))
			}
		}
		fmt.Fprintln(w)
	}

	// Listings by Location
	fmt.Fprintf(w, "\033[1;33m  Listings by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// DealSummary describes one scored listing in a few human-readable lines.
func DealSummary(l models.ScoredListing) []string {
	lines := []string{dealVerdict(l.DealScore), fmt.Sprintf("Deal score: %d/100", l.DealScore)}

	if l.Savings != nil {
		switch {
		case *l.Savings > 0:
			lines = append(lines, fmt.Sprintf("💰 %s below average", formatNOK(float64(*l.Savings))))
		case *l.Savings < 0:
			lines = append(lines, fmt.Sprintf("💸 %s above average", formatNOK(float64(-*l.Savings))))
		default:
			lines = append(lines, "At the average price")
		}
	}
	if l.IsPrivateSeller != nil && *l.IsPrivateSeller {
		lines = append(lines, "Private seller")
	}
	if l.HasShipping != nil && *l.HasShipping {
		lines = append(lines, "Shipping available (Fiks ferdig)")
	}
	return lines
}

func dealVerdict(score int) string {
	switch {
	case score >= 90:
		return "🔥 Excellent deal"
	case score >= 80:
		return "⭐ Great deal"
	case score >= 70:
		return "👍 Good deal"
	case score >= 50:
		return "📊 Fair price"
	default:
		return "⚠️ Above average"
	}
}

// formatNOK renders a whole-krone amount with Norwegian digit grouping.
func formatNOK(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	out := b.String() + " kr"
	if neg {
		out = "-" + out
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
