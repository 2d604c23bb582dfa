package finn

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"finn-deal-finder/models"
)

// DefaultMaxPages is used when a FilterConfig leaves MaxPages unset.
const DefaultMaxPages = 3

// QuerySpec is one fully-formed request for a single result page.
type QuerySpec struct {
	Page   int
	URL    string
	Params url.Values
}

var categoryPaths = map[models.Category]string{
	models.CategoryTorget:      "/bap/forsale/search.html",
	models.CategoryCars:        "/car/used/search.html",
	models.CategoryRealEstate:  "/realestate/homes/search.html",
	models.CategoryMotorcycles: "/mc/used/search.html",
	models.CategoryBoats:       "/boat/forsale/search.html",
}

var conditionCodes = map[models.Condition]string{
	models.ConditionNew:      "1",
	models.ConditionAsNew:    "2",
	models.ConditionUsed:     "3",
	models.ConditionForParts: "4",
}

var countyCodes = map[models.County]string{
	models.CountyOslo:             "0.20061",
	models.CountyViken:            "0.22030",
	models.CountyVestland:         "0.22046",
	models.CountyRogaland:         "0.20012",
	models.CountyTrondelag:        "0.20016",
	models.CountyNordland:         "0.20018",
	models.CountyVestfoldTelemark: "0.22038",
	models.CountyAgder:            "0.22042",
	models.CountyInnlandet:        "0.22034",
	models.CountyMoreRomsdal:      "0.20015",
	models.CountyTromsFinnmark:    "0.22054",
}

var publishedCodes = map[models.PublishedWithin]string{
	models.PublishedToday: "1",
	models.PublishedWeek:  "7",
	models.PublishedMonth: "30",
}

var sortCodes = map[models.SortOrder]string{
	models.SortPriceAsc:  "2",
	models.SortPriceDesc: "3",
	models.SortDate:      "1",
}

// Categories lists the supported categories in display order.
func Categories() []models.Category {
	return []models.Category{
		models.CategoryTorget,
		models.CategoryCars,
		models.CategoryRealEstate,
		models.CategoryMotorcycles,
		models.CategoryBoats,
	}
}

// QueryBuilder turns a FilterConfig into per-page request descriptors.
type QueryBuilder struct {
	baseURL string
	hardCap int
}

// NewQueryBuilder creates a builder for the given site root. hardCap is the
// largest MaxPages a caller may ask for.
func NewQueryBuilder(baseURL string, hardCap int) *QueryBuilder {
	if hardCap < 1 {
		hardCap = 1
	}
	return &QueryBuilder{baseURL: strings.TrimRight(baseURL, "/"), hardCap: hardCap}
}

// Build validates cfg and returns one QuerySpec per page index, in order.
func (b *QueryBuilder) Build(cfg models.FilterConfig) ([]QuerySpec, error) {
	params, path, err := b.baseParams(cfg)
	if err != nil {
		return nil, err
	}

	pages := cfg.MaxPages
	switch {
	case pages == 0:
		pages = DefaultMaxPages
	case pages < 0:
		return nil, &models.ValidationError{Field: "maxPages", Reason: "must be positive"}
	case pages > b.hardCap:
		return nil, &models.ValidationError{
			Field:  "maxPages",
			Reason: fmt.Sprintf("%d exceeds the limit of %d", pages, b.hardCap),
		}
	}

	specs := make([]QuerySpec, 0, pages)
	for page := 0; page < pages; page++ {
		p := cloneValues(params)
		if page > 0 {
			p.Set("page", strconv.Itoa(page+1))
		}
		specs = append(specs, QuerySpec{
			Page:   page,
			URL:    b.baseURL + path + encode(p),
			Params: p,
		})
	}
	return specs, nil
}

// SearchURL returns the first-page URL for cfg without applying page limits.
func (b *QueryBuilder) SearchURL(cfg models.FilterConfig) (string, error) {
	params, path, err := b.baseParams(cfg)
	if err != nil {
		return "", err
	}
	return b.baseURL + path + encode(params), nil
}

func (b *QueryBuilder) baseParams(cfg models.FilterConfig) (url.Values, string, error) {
	path, ok := categoryPaths[cfg.Category]
	if !ok {
		return nil, "", &models.ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("unsupported category %q", cfg.Category),
		}
	}

	params := url.Values{}
	if kw := strings.TrimSpace(cfg.Keywords); kw != "" {
		params.Set("q", kw)
	}

	if cfg.PriceMin != nil && *cfg.PriceMin < 0 {
		return nil, "", &models.ValidationError{Field: "priceMin", Reason: "must not be negative"}
	}
	if cfg.PriceMax != nil && *cfg.PriceMax < 0 {
		return nil, "", &models.ValidationError{Field: "priceMax", Reason: "must not be negative"}
	}
	if cfg.PriceMin != nil && cfg.PriceMax != nil && *cfg.PriceMin > *cfg.PriceMax {
		return nil, "", &models.ValidationError{
			Field:  "priceMin",
			Reason: fmt.Sprintf("%d is greater than priceMax %d", *cfg.PriceMin, *cfg.PriceMax),
		}
	}
	if cfg.PriceMin != nil {
		params.Set("price_from", strconv.Itoa(*cfg.PriceMin))
	}
	if cfg.PriceMax != nil {
		params.Set("price_to", strconv.Itoa(*cfg.PriceMax))
	}

	if cfg.Condition != models.ConditionAny {
		code, ok := conditionCodes[cfg.Condition]
		if !ok {
			return nil, "", &models.ValidationError{
				Field:  "condition",
				Reason: fmt.Sprintf("unknown condition %q", cfg.Condition),
			}
		}
		params.Set("condition", code)
	}

	if cfg.Location != models.CountyAny {
		code, ok := countyCodes[cfg.Location]
		if !ok {
			return nil, "", &models.ValidationError{
				Field:  "location",
				Reason: fmt.Sprintf("unknown county %q", cfg.Location),
			}
		}
		params.Set("location", code)
	}

	if cfg.PublishedWithin != models.PublishedAny {
		code, ok := publishedCodes[cfg.PublishedWithin]
		if !ok {
			return nil, "", &models.ValidationError{
				Field:  "publishedWithin",
				Reason: fmt.Sprintf("unknown bucket %q", cfg.PublishedWithin),
			}
		}
		params.Set("published", code)
	}

	if cfg.PrivateSellerOnly {
		params.Set("dealer_segment", "1")
	}
	if cfg.HasImageOnly {
		params.Set("image", "1")
	}
	if cfg.ShippingAvailable {
		params.Set("fiks_ferdig", "1")
	}

	switch cfg.SortOrder {
	case "", models.SortRelevance:
	default:
		code, ok := sortCodes[cfg.SortOrder]
		if !ok {
			return nil, "", &models.ValidationError{
				Field:  "sortOrder",
				Reason: fmt.Sprintf("unknown sort order %q", cfg.SortOrder),
			}
		}
		params.Set("sort", code)
	}

	return params, path, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func encode(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
