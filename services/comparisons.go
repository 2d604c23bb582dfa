package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"finn-deal-finder/models"
)

const (
	comparisonKeyWords    = 3
	maxComparisonListings = 5
)

var titleWordRegexp = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Filler words common in Norwegian listing titles.
var comparisonStopWords = map[string]bool{
	"til": true, "for": true, "med": true, "og": true, "i": true, "på": true,
	"selges": true, "salg": true, "pent": true, "brukt": true, "ny": true,
}

// FindComparisons groups listings whose titles share their first
// significant words, e.g. "iPhone 13 Pro selges" and "Pent brukt iPhone 13
// Pro". Only groups with at least two listings are returned, in order of
// first appearance, each holding at most five listings.
func FindComparisons(listings []models.ScoredListing) []models.ComparisonGroup {
	groups := make(map[string][]models.ScoredListing)
	var order []string

	for _, l := range listings {
		key := comparisonKey(l.Title)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], l)
	}

	caser := cases.Title(language.Norwegian)
	var out []models.ComparisonGroup
	for _, key := range order {
		g := groups[key]
		if len(g) < 2 {
			continue
		}
		if len(g) > maxComparisonListings {
			g = g[:maxComparisonListings]
		}
		out = append(out, models.ComparisonGroup{Key: caser.String(key), Listings: g})
	}
	return out
}

// comparisonKey returns up to three significant title words, or "" when
// the title has fewer than two.
func comparisonKey(title string) string {
	var words []string
	for _, w := range titleWordRegexp.FindAllString(strings.ToLower(title), -1) {
		if comparisonStopWords[w] || utf8.RuneCountInString(w) <= 2 {
			continue
		}
		words = append(words, w)
		if len(words) == comparisonKeyWords {
			break
		}
	}
	if len(words) < 2 {
		return ""
	}
	return strings.Join(words, " ")
}
