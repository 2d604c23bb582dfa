package models

import "time"

// SavedSearch is a named FilterConfig kept for re-running later.
type SavedSearch struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Filter    FilterConfig `json:"filter"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Favorite is a listing the user bookmarked, as it looked when saved.
type Favorite struct {
	Listing
	AddedAt time.Time `json:"addedAt"`
}

// PricePoint is one observation of a listing's price in a past search.
type PricePoint struct {
	FinnID     string    `json:"finnId"`
	Title      string    `json:"title"`
	Price      *int      `json:"price,omitempty"`
	DealScore  int       `json:"dealScore"`
	Category   Category  `json:"category"`
	URL        string    `json:"url"`
	RecordedAt time.Time `json:"recordedAt"`
}

// TrendDirection summarises how a listing's price moved over time.
type TrendDirection string

const (
	TrendInsufficientData TrendDirection = "insufficient_data"
	TrendIncreasing       TrendDirection = "increasing"
	TrendStable           TrendDirection = "stable"
	TrendDecreasing       TrendDirection = "decreasing"
)

// PriceTrend compares the older and newer halves of a price history.
// The price fields are zero when Direction is TrendInsufficientData.
type PriceTrend struct {
	Direction     TrendDirection `json:"direction"`
	ChangePercent float64        `json:"changePercent"`
	FirstAverage  float64        `json:"firstAverage"`
	SecondAverage float64        `json:"secondAverage"`
	Min           int            `json:"min"`
	Max           int            `json:"max"`
	Current       int            `json:"current"`
}

// DailyPrice aggregates the recorded prices of one category on one day.
type DailyPrice struct {
	Day     time.Time `json:"day"`
	Average float64   `json:"average"`
	Count   int       `json:"count"`
	Min     int       `json:"min"`
	Max     int       `json:"max"`
}
