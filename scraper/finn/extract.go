package finn

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"finn-deal-finder/metrics"
	"finn-deal-finder/models"
)

// Result card selectors, tried in order until one matches.
var fragmentSelectors = []string{
	`article[class*="sf-search-ad"], article[class*="ads__unit"]`,
	`a[class*="sf-search-ad-link"], a[class*="ads__unit__link"]`,
	`[data-testid*="ad-card"], [data-testid*="listing-card"], .result-card`,
}

// PageReport counts what happened while extracting one page.
type PageReport struct {
	Fragments      int
	Extracted      int
	Skipped        int
	UnparsedPrices int
}

// Empty reports a page with no result cards at all.
func (r PageReport) Empty() bool { return r.Fragments == 0 }

// FormatBroken reports a page that had result cards but none could be read,
// which usually means the markup changed.
func (r PageReport) FormatBroken() bool { return r.Fragments > 0 && r.Extracted == 0 }

// Warnings renders the page's anomalies as user-facing warnings.
func (r PageReport) Warnings(page int) []string {
	var out []string
	if r.FormatBroken() {
		out = append(out, fmt.Sprintf(
			"page %d: found %d result cards but could not read any of them (page layout may have changed)",
			page+1, r.Fragments))
	} else if r.Skipped > 0 {
		out = append(out, fmt.Sprintf("page %d: skipped %d unreadable result cards", page+1, r.Skipped))
	}
	if r.UnparsedPrices > 0 {
		out = append(out, fmt.Sprintf("page %d: %d prices could not be parsed and were left blank", page+1, r.UnparsedPrices))
	}
	return out
}

// Extractor parses result pages into Listings.
type Extractor struct {
	cleaner *Cleaner
}

// NewExtractor creates an Extractor resolving links against baseURL. now
// anchors relative dates; nil means time.Now.
func NewExtractor(baseURL string, now func() time.Time) *Extractor {
	return &Extractor{cleaner: NewCleaner(baseURL, now)}
}

// Extract returns the listings on one page in document order. It never
// fails: cards that cannot be read are counted in the report.
func (e *Extractor) Extract(content string) ([]models.Listing, PageReport) {
	var report PageReport

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, report
	}

	var cards *goquery.Selection
	for _, sel := range fragmentSelectors {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}

	listings := make([]models.Listing, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		report.Fragments++

		l, priceUnparsed, err := e.cleaner.Clean(readCard(card))
		if err != nil {
			report.Skipped++
			return
		}
		if priceUnparsed {
			report.UnparsedPrices++
		}
		report.Extracted++
		listings = append(listings, l)
	})

	metrics.ListingsExtracted.Add(float64(report.Extracted))
	if report.FormatBroken() {
		metrics.ExtractionAnomalies.WithLabelValues("format_break").Inc()
	}
	if report.Skipped > 0 {
		metrics.ExtractionAnomalies.WithLabelValues("skipped_card").Add(float64(report.Skipped))
	}
	if report.UnparsedPrices > 0 {
		metrics.ExtractionAnomalies.WithLabelValues("unparsed_price").Add(float64(report.UnparsedPrices))
	}
	return listings, report
}

// readCard pulls the raw text fields out of one result card. Every lookup
// is optional.
func readCard(card *goquery.Selection) models.RawListing {
	var raw models.RawListing

	link := card
	if goquery.NodeName(card) != "a" {
		link = card.Find("a[href]").First()
	}
	if href, ok := link.Attr("href"); ok {
		raw.URL = href
	}
	if id, ok := link.Attr("id"); ok && ListingID("/"+id) != "" {
		raw.ID = id
	}

	raw.Title = firstText(card, `h2`, `h3`, `[class*="title"]`, `[class*="heading"]`)
	if raw.Title == "" && link.Length() > 0 {
		raw.Title = link.Text()
	}

	raw.RawPrice = firstText(card, `[class*="price"]`, `[class*="amount"]`, `[data-testid*="price"]`)
	if raw.RawPrice == "" {
		if m := inlinePriceRegexp.FindString(card.Text()); m != "" {
			raw.RawPrice = m
		}
	}

	raw.Location = firstText(card, `[class*="location"]`, `[class*="place"]`, `[class*="geo"]`, `[data-testid*="location"]`)

	if img := card.Find("img").First(); img.Length() > 0 {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
				raw.ImageURL = v
				break
			}
		}
	}

	if dt, ok := card.Find("time[datetime]").First().Attr("datetime"); ok {
		raw.RawPublished = dt
	} else {
		raw.RawPublished = firstText(card, `time`, `[class*="published"]`, `[class*="date"]`, `[class*="time"]`)
	}

	raw.SellerText = firstText(card, `[class*="seller"]`, `[data-testid*="seller"]`, `[class*="dealer"]`)

	text := strings.ToLower(card.Text())
	raw.HasShipping = strings.Contains(text, "fiks ferdig") ||
		card.Find(`[class*="shipping"], [data-testid*="shipping"]`).Length() > 0

	return raw
}

func firstText(card *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(card.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
