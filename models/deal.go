package models

// DealBand is the display band a deal score falls into.
type DealBand string

const (
	BandGreat   DealBand = "great"
	BandGood    DealBand = "good"
	BandRegular DealBand = "regular"
)

// BandFor maps a score in [0,100] to its band: [70,100] great, [50,69] good,
// [0,49] regular.
func BandFor(score int) DealBand {
	switch {
	case score >= 70:
		return BandGreat
	case score >= 50:
		return BandGood
	default:
		return BandRegular
	}
}
