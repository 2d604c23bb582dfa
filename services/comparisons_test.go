package services

import (
	"fmt"
	"strings"
	"testing"

	"finn-deal-finder/models"
)

func titled(titles ...string) []models.ScoredListing {
	out := make([]models.ScoredListing, len(titles))
	for i, title := range titles {
		out[i] = models.ScoredListing{Listing: models.Listing{ID: fmt.Sprint(i + 1), Title: title}}
	}
	return out
}

func TestFindComparisonsGroupsSimilarTitles(t *testing.T) {
	groups := FindComparisons(titled(
		"iPhone 13 Pro selges",
		"Sofa fra Bolia",
		"Pent brukt iPhone 13 Pro",
		"Stol",
		"Sofa fra Bolia, grå",
	))

	if len(groups) != 2 {
		t.Fatalf("groups: got %d, want 2", len(groups))
	}
	if groups[0].Key != "Iphone Pro" {
		t.Errorf("first key: got %q, want %q", groups[0].Key, "Iphone Pro")
	}
	if ids := []string{groups[0].Listings[0].ID, groups[0].Listings[1].ID}; ids[0] != "1" || ids[1] != "3" {
		t.Errorf("first group members: got %v, want [1 3]", ids)
	}
	if groups[1].Key != "Sofa Fra Bolia" {
		t.Errorf("second key: got %q, want %q", groups[1].Key, "Sofa Fra Bolia")
	}
}

func TestFindComparisonsSkipsSingletonsAndShortTitles(t *testing.T) {
	groups := FindComparisons(titled("Stol", "Stol", "Racersykkel Trek", "Terrengsykkel Specialized"))
	if len(groups) != 0 {
		t.Errorf("groups: got %d, want 0", len(groups))
	}
}

func TestFindComparisonsLimitsGroupSize(t *testing.T) {
	titles := make([]string, 8)
	for i := range titles {
		titles[i] = "Trek Marlin sykkel"
	}
	groups := FindComparisons(titled(titles...))
	if len(groups) != 1 || len(groups[0].Listings) != maxComparisonListings {
		t.Fatalf("got %d groups, want one group of %d", len(groups), maxComparisonListings)
	}
}

func TestComparisonKeyKeepsNorwegianLetters(t *testing.T) {
	if got := comparisonKey("Gråtass traktor på salg"); got != "gråtass traktor" {
		t.Errorf("key: got %q, want %q", got, "gråtass traktor")
	}
}

func TestDealSummary(t *testing.T) {
	private, shipping := true, true
	l := models.ScoredListing{
		Listing:   models.Listing{Title: "Bysykkel", Price: price(100), IsPrivateSeller: &private, HasShipping: &shipping},
		DealScore: 100,
		Savings:   price(600),
	}
	got := strings.Join(DealSummary(l), "\n")
	for _, want := range []string{"Excellent deal", "Deal score: 100/100", "600 kr below average", "Private seller", "Fiks ferdig"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}

	l = models.ScoredListing{Listing: models.Listing{Title: "Dyr"}, DealScore: 7, Savings: price(-300)}
	got = strings.Join(DealSummary(l), "\n")
	if !strings.Contains(got, "Above average") || !strings.Contains(got, "300 kr above average") {
		t.Errorf("expensive summary: got\n%s", got)
	}

	l = models.ScoredListing{Listing: models.Listing{Title: "Ukjent"}, DealScore: 50, PriceUnknown: true}
	if lines := DealSummary(l); len(lines) != 2 {
		t.Errorf("unknown price summary: got %d lines, want 2", len(lines))
	}
}
