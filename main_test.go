package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finn-deal-finder/config"
	"finn-deal-finder/models"
	"finn-deal-finder/scraper/finn"
	"finn-deal-finder/utils"
)

func TestParseFlagsFilter(t *testing.T) {
	opts, err := parseFlags([]string{
		"-q", "sykkel", "-category", "torget", "-min", "100", "-max", "2000",
		"-condition", "used", "-location", "oslo", "-published", "week",
		"-private", "-shipping", "-sort", "price_asc", "-pages", "2",
	})
	require.NoError(t, err)

	f := opts.filter
	assert.Equal(t, "sykkel", f.Keywords)
	assert.Equal(t, models.CategoryTorget, f.Category)
	require.NotNil(t, f.PriceMin)
	require.NotNil(t, f.PriceMax)
	assert.Equal(t, 100, *f.PriceMin)
	assert.Equal(t, 2000, *f.PriceMax)
	assert.Equal(t, models.ConditionUsed, f.Condition)
	assert.Equal(t, models.CountyOslo, f.Location)
	assert.Equal(t, models.PublishedWeek, f.PublishedWithin)
	assert.True(t, f.PrivateSellerOnly)
	assert.False(t, f.HasImageOnly)
	assert.True(t, f.ShippingAvailable)
	assert.Equal(t, models.SortPriceAsc, f.SortOrder)
	assert.Equal(t, 2, f.MaxPages)
}

func TestParseFlagsUnsetPricesAreAbsent(t *testing.T) {
	opts, err := parseFlags([]string{"-q", "sofa"})
	require.NoError(t, err)
	assert.Nil(t, opts.filter.PriceMin)
	assert.Nil(t, opts.filter.PriceMax)
}

func TestParseFlagsZeroPriceIsKept(t *testing.T) {
	opts, err := parseFlags([]string{"-min", "0"})
	require.NoError(t, err)
	require.NotNil(t, opts.filter.PriceMin)
	assert.Equal(t, 0, *opts.filter.PriceMin)
}

func TestParseFlagsNegativePriceIsRejected(t *testing.T) {
	opts, err := parseFlags([]string{"-min", "-100"})
	require.NoError(t, err)
	require.NotNil(t, opts.filter.PriceMin)
	assert.Equal(t, -100, *opts.filter.PriceMin)

	_, err = finn.NewQueryBuilder("https://www.finn.no", 10).Build(opts.filter)
	var vErr *models.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "priceMin", vErr.Field)
}

func TestParseFlagsReportModes(t *testing.T) {
	opts, err := parseFlags([]string{"-json", "-trends", "-category", "car", "-days", "7"})
	require.NoError(t, err)
	assert.True(t, opts.json)
	assert.False(t, opts.csv)
	assert.True(t, opts.trends)
	assert.Equal(t, 7, opts.days)
	assert.Equal(t, models.CategoryCars, opts.filter.Category)

	opts, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 30, opts.days)
}

func TestOpenWritersSkipsUnreachableDatabaseQuickly(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "127.0.0.1",
		PostgresPort:     "1",
		PostgresUser:     "finn",
		PostgresPassword: "finn123",
		PostgresDB:       "finn_deals",
		PostgresSSLMode:  "disable",
		MaxRetries:       5,
	}

	start := time.Now()
	writers := openWriters(context.Background(), cfg, utils.NewNopLogger(), false, false)
	assert.Empty(t, writers)
	assert.Less(t, time.Since(start), historyConnectTimeout+time.Second)
}
