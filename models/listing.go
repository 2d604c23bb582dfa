package models

import "time"

// Category is a FINN marketplace vertical.
type Category string

const (
	CategoryTorget      Category = "torget"
	CategoryCars        Category = "car"
	CategoryRealEstate  Category = "realestate"
	CategoryMotorcycles Category = "mc"
	CategoryBoats       Category = "boat"
)

// Condition filters Torget listings by item condition.
type Condition string

const (
	ConditionAny      Condition = ""
	ConditionNew      Condition = "new"
	ConditionAsNew    Condition = "as_new"
	ConditionUsed     Condition = "used"
	ConditionForParts Condition = "for_parts"
)

// County is a Norwegian county (fylke) used as a location filter.
type County string

const (
	CountyAny              County = ""
	CountyOslo             County = "oslo"
	CountyViken            County = "viken"
	CountyVestland         County = "vestland"
	CountyRogaland         County = "rogaland"
	CountyTrondelag        County = "trondelag"
	CountyNordland         County = "nordland"
	CountyVestfoldTelemark County = "vestfold_telemark"
	CountyAgder            County = "agder"
	CountyInnlandet        County = "innlandet"
	CountyMoreRomsdal      County = "more_romsdal"
	CountyTromsFinnmark    County = "troms_finnmark"
)

// PublishedWithin is a bucket for how recently a listing was published.
type PublishedWithin string

const (
	PublishedAny   PublishedWithin = ""
	PublishedToday PublishedWithin = "today"
	PublishedWeek  PublishedWithin = "week"
	PublishedMonth PublishedWithin = "month"
)

// SortOrder controls the final ordering of a SearchResult.
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortDate      SortOrder = "date"
)

// FilterConfig describes one search request. Prices are whole NOK.
// A zero MaxPages means "use the default".
type FilterConfig struct {
	Keywords          string          `json:"keywords"`
	Category          Category        `json:"category"`
	PriceMin          *int            `json:"priceMin,omitempty"`
	PriceMax          *int            `json:"priceMax,omitempty"`
	Condition         Condition       `json:"condition,omitempty"`
	Location          County          `json:"location,omitempty"`
	PublishedWithin   PublishedWithin `json:"publishedWithin,omitempty"`
	PrivateSellerOnly bool            `json:"privateSellerOnly"`
	HasImageOnly      bool            `json:"hasImageOnly"`
	ShippingAvailable bool            `json:"shippingAvailable"`
	SortOrder         SortOrder       `json:"sortOrder,omitempty"`
	MaxPages          int             `json:"maxPages,omitempty"`
}

// RawListing holds the text pulled out of one result card before any
// normalisation. Empty strings mean the field was not found.
type RawListing struct {
	ID           string
	Title        string
	RawPrice     string
	URL          string
	ImageURL     string
	Location     string
	RawPublished string
	SellerText   string
	HasShipping  bool
}

// Listing is one normalised marketplace item. Nil pointers mean the field
// could not be extracted; a nil Price is not the same as a zero price.
type Listing struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Price           *int       `json:"price,omitempty"`
	URL             string     `json:"url"`
	ImageURL        *string    `json:"imageUrl,omitempty"`
	Location        *string    `json:"location,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	IsPrivateSeller *bool      `json:"isPrivateSeller,omitempty"`
	HasShipping     *bool      `json:"hasShipping,omitempty"`
}

// HasPrice reports whether the listing carries a known price.
func (l Listing) HasPrice() bool {
	return l.Price != nil
}

// ScoredListing is a Listing enriched with its deal score. Scores are only
// meaningful inside the SearchResult that produced them.
type ScoredListing struct {
	Listing
	DealScore    int      `json:"dealScore"`
	DealBand     DealBand `json:"dealBand"`
	PriceUnknown bool     `json:"priceUnknown"`
	Savings      *int     `json:"savings,omitempty"`
}

// PriceStats aggregates listings with a known price. When Count is zero the
// other fields are nil.
type PriceStats struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average,omitempty"`
	Median  *float64 `json:"median,omitempty"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
}

// SearchResult is the output of one completed search.
type SearchResult struct {
	Listings     []ScoredListing `json:"listings"`
	Stats        PriceStats      `json:"stats"`
	PagesFetched int             `json:"pagesFetched"`
	Warnings     []string        `json:"warnings"`
	SearchURL    string          `json:"searchUrl,omitempty"`
}

// InsightReport holds the summary printed after a search.
type InsightReport struct {
	TotalListings      int
	PricedListings     int
	Stats              PriceStats
	BandCounts         map[DealBand]int
	BestDeal           *ScoredListing
	PotentialSavings   int
	ListingsByLocation map[string]int
	Comparisons        []ComparisonGroup
}

// ComparisonGroup is a set of listings whose titles name the same item.
type ComparisonGroup struct {
	Key      string
	Listings []ScoredListing
}
