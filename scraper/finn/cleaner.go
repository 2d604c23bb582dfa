package finn

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"finn-deal-finder/models"
)

var (
	ErrMissingTitle = errors.New("result card has no title")
	ErrMissingLink  = errors.New("result card has neither link nor id")
)

var (
	// priceRegexp matches the first number in a price string once blanks are
	// removed: "12.500,50" and "12500" both match.
	priceRegexp = regexp.MustCompile(`\d+(?:\.\d{3})*(?:,\d+)?`)
	// finnkodeRegexp captures the listing code from a query string.
	finnkodeRegexp = regexp.MustCompile(`finnkode=(\d+)`)
	// trailingIDRegexp captures a numeric trailing path segment.
	trailingIDRegexp = regexp.MustCompile(`/(\d{4,})/?(?:[?#].*)?$`)
	// relativeRegexp matches "3 timer siden", "1 dag siden" and similar.
	relativeRegexp = regexp.MustCompile(`(\d+)\s*(min|minutt|minutter|time|timer|t|dag|dager|d|uke|uker)\.?\s+siden`)
	// clockRegexp captures an HH:MM time of day.
	clockRegexp = regexp.MustCompile(`(\d{1,2})[:.](\d{2})`)
	// inlinePriceRegexp finds "1 500 kr" in free text when no price element exists.
	inlinePriceRegexp = regexp.MustCompile(`(\d[\d\s\x{00a0}\x{202f}.]*)\s*(?:kr|,-)`)
)

var blankReplacer = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\t", "",
	",-", "",
	".-", "",
)

// ParsePrice turns FINN price text into whole NOK. "Gis bort" is a zero
// price. ok is false when the text holds no usable number.
func ParsePrice(raw string) (int, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return 0, false
	}
	if strings.Contains(lower, "gis bort") {
		return 0, true
	}

	compact := blankReplacer.Replace(lower)
	match := priceRegexp.FindString(compact)
	if match == "" {
		return 0, false
	}
	if i := strings.IndexByte(match, ','); i >= 0 {
		match = match[:i]
	}
	match = strings.ReplaceAll(match, ".", "")

	price, err := strconv.Atoi(match)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

// ParsePublished reads a listing timestamp, either RFC 3339 or Norwegian
// relative text ("i dag 14:32", "i går", "3 timer siden").
func ParsePublished(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}

	lower := strings.ToLower(normaliseText(raw))

	if m := relativeRegexp.FindStringSubmatch(lower); len(m) == 3 {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		switch m[2] {
		case "min", "minutt", "minutter":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "time", "timer", "t":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "dag", "dager", "d":
			return now.AddDate(0, 0, -n), true
		case "uke", "uker":
			return now.AddDate(0, 0, -7*n), true
		}
	}

	var day time.Time
	switch {
	case strings.Contains(lower, "i dag"):
		day = now
	case strings.Contains(lower, "i går"), strings.Contains(lower, "i gar"):
		day = now.AddDate(0, 0, -1)
	default:
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if m := clockRegexp.FindStringSubmatch(lower); len(m) == 3 {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), true
}

// ParseSeller classifies seller text. ok is false when the text says
// nothing either way.
func ParseSeller(raw string) (private bool, ok bool) {
	lower := strings.ToLower(raw)
	switch {
	case lower == "":
		return false, false
	case strings.Contains(lower, "forhandler"),
		strings.Contains(lower, "bedrift"),
		strings.Contains(lower, "firma"):
		return false, true
	case strings.Contains(lower, "privat"):
		return true, true
	}
	return false, false
}

// ListingID pulls the FINN code out of a listing link.
func ListingID(href string) string {
	if m := finnkodeRegexp.FindStringSubmatch(href); len(m) == 2 {
		return m[1]
	}
	if m := trailingIDRegexp.FindStringSubmatch(href); len(m) == 2 {
		return m[1]
	}
	return ""
}

// Cleaner turns RawListings into Listings.
type Cleaner struct {
	base *url.URL
	now  func() time.Time
}

// NewCleaner creates a Cleaner that resolves relative links against baseURL.
func NewCleaner(baseURL string, now func() time.Time) *Cleaner {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	if now == nil {
		now = time.Now
	}
	return &Cleaner{base: base, now: now}
}

// Clean normalises one raw card. priceUnparsed reports price text that was
// present but unreadable; the listing is still returned with no price.
// An error means the card cannot become a Listing at all.
func (c *Cleaner) Clean(r models.RawListing) (l models.Listing, priceUnparsed bool, err error) {
	title := normaliseText(r.Title)
	if title == "" {
		return models.Listing{}, false, ErrMissingTitle
	}

	link := c.absolute(strings.TrimSpace(r.URL))
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = ListingID(link)
	}
	if link == "" && id == "" {
		return models.Listing{}, false, ErrMissingLink
	}
	if id == "" {
		id = link
	}
	if link == "" {
		link = c.absolute("/recommerce/forsale/item/" + id)
	}

	l = models.Listing{ID: id, Title: title, URL: link}

	if rawPrice := normaliseText(r.RawPrice); rawPrice != "" {
		if p, ok := ParsePrice(rawPrice); ok {
			l.Price = &p
		} else {
			priceUnparsed = true
		}
	}
	if img := c.absolute(strings.TrimSpace(r.ImageURL)); img != "" {
		l.ImageURL = &img
	}
	if loc := normaliseText(r.Location); loc != "" {
		l.Location = &loc
	}
	if t, ok := ParsePublished(r.RawPublished, c.now()); ok {
		l.PublishedAt = &t
	}
	if private, ok := ParseSeller(r.SellerText); ok {
		l.IsPrivateSeller = &private
	}
	if r.HasShipping {
		shipping := true
		l.HasShipping = &shipping
	}
	return l, priceUnparsed, nil
}

func (c *Cleaner) absolute(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(u).String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
