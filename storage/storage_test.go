package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finn-deal-finder/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func sampleResult() *models.SearchResult {
	return &models.SearchResult{
		Listings: []models.ScoredListing{
			{
				Listing:   models.Listing{ID: "100", Title: "Sykkel, rød", Price: intPtr(100), Location: strPtr("Tromsø"), URL: "https://www.finn.no/100"},
				DealScore: 100, DealBand: models.BandGreat, Savings: intPtr(600),
			},
			{
				Listing:   models.Listing{ID: "200", Title: "Hjelm", URL: "https://www.finn.no/200"},
				DealScore: 50, DealBand: models.BandGood, PriceUnknown: true,
			},
		},
		Stats:        models.PriceStats{Count: 1, Average: floatPtr(700)},
		PagesFetched: 1,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM), "missing BOM")

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"100", "Sykkel, rød", "100", "Tromsø", "https://www.finn.no/100", "100", "great", "false", "700.00", "600"}, records[1])
	assert.Equal(t, []string{"200", "Hjelm", "", "", "https://www.finn.no/200", "50", "good", "true", "700.00", ""}, records[2])
}

func TestWriteCSVEscapesFormulas(t *testing.T) {
	result := &models.SearchResult{Listings: []models.ScoredListing{{
		Listing:   models.Listing{ID: "300", Title: "=HYPERLINK(\"http://evil\")", Location: strPtr("@Oslo"), URL: "https://www.finn.no/300"},
		DealScore: 20, DealBand: models.BandRegular, Savings: intPtr(-300),
	}, {
		Listing:   models.Listing{ID: "301", Title: "-50% på sykkel", URL: "https://www.finn.no/301"},
		DealScore: 50, DealBand: models.BandGood,
	}}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, `'=HYPERLINK("http://evil")`, records[1][1])
	assert.Equal(t, "'@Oslo", records[1][3])
	assert.Equal(t, "-300", records[1][9], "numeric cells stay numeric")
	assert.Equal(t, "'-50% på sykkel", records[2][1])
}

func TestCSVWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deals.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), sampleResult(), models.CategoryTorget))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestPostgresWriterWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO price_history").
		WithArgs("100", "Sykkel, rød", int64(100), int64(100), "torget", "https://www.finn.no/100",
			"200", "Hjelm", sqlmock.AnyArg(), int64(50), "torget", "https://www.finn.no/200").
		WillReturnResult(sqlmock.NewResult(0, 2))

	pw, err := NewPostgresWriterFromDB(context.Background(), db, nil)
	require.NoError(t, err)
	require.NoError(t, pw.Write(context.Background(), sampleResult(), models.CategoryTorget))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterSkipsEmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))

	pw, err := NewPostgresWriterFromDB(context.Background(), db, nil)
	require.NoError(t, err)
	require.NoError(t, pw.Write(context.Background(), &models.SearchResult{}, models.CategoryCars))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"finn_id", "title", "price", "deal_score", "category", "url", "recorded_at"}).
		AddRow("100", "Sykkel", int64(1200), int64(40), "torget", "https://www.finn.no/100", t1).
		AddRow("100", "Sykkel", nil, int64(50), "torget", "https://www.finn.no/100", t2)
	mock.ExpectQuery("SELECT (.+) FROM price_history WHERE finn_id = \\$1").WithArgs("100").WillReturnRows(rows)

	pw, err := NewPostgresWriterFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	points, err := pw.History(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.NotNil(t, points[0].Price)
	assert.Equal(t, 1200, *points[0].Price)
	assert.Equal(t, models.CategoryTorget, points[0].Category)
	assert.Nil(t, points[1].Price)
	assert.Equal(t, t2, points[1].RecordedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterCategoryTrends(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"day", "avg", "count", "min", "max"}).
		AddRow(day1, 1500.5, int64(4), int64(900), int64(2500)).
		AddRow(day2, 1200.0, int64(2), int64(1000), int64(1400))
	mock.ExpectQuery("SELECT date_trunc(.+) FROM price_history").WithArgs("torget", int64(30)).WillReturnRows(rows)

	pw, err := NewPostgresWriterFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	trends, err := pw.CategoryTrends(context.Background(), models.CategoryTorget, 30)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, day1, trends[0].Day)
	assert.InDelta(t, 1500.5, trends[0].Average, 1e-9)
	assert.Equal(t, 4, trends[0].Count)
	assert.Equal(t, 900, trends[0].Min)
	assert.Equal(t, 1400, trends[1].Max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteJSON(t *testing.T) {
	generated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	result := sampleResult()
	result.SearchURL = "https://www.finn.no/bap/forsale/search.html?q=sykkel&sort=2"

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, result, models.CategoryTorget, generated))
	assert.Contains(t, buf.String(), "Sykkel, rød", "non-ASCII text is written as is")
	assert.Contains(t, buf.String(), "q=sykkel&sort=2", "HTML characters are not escaped")

	var doc JSONExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, generated, doc.ExportInfo.GeneratedAt)
	assert.Equal(t, 2, doc.ExportInfo.TotalItems)
	assert.Equal(t, models.CategoryTorget, doc.ExportInfo.Category)
	assert.Equal(t, exportSource, doc.ExportInfo.Source)
	require.NotNil(t, doc.Statistics.Average)
	assert.InDelta(t, 700.0, *doc.Statistics.Average, 1e-9)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "100", doc.Items[0].ID)
	assert.True(t, doc.Items[1].PriceUnknown)
}

func TestWriteJSONEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &models.SearchResult{}, models.CategoryCars, time.Now()))
	assert.Contains(t, buf.String(), `"items": []`)
}

func TestJSONWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deals.json")

	w, err := NewJSONWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), sampleResult(), models.CategoryTorget))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc JSONExport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Items, 2)
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStore(NewRedisClient(mr.Addr(), "", 0), nil)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisSavedSearches(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first, err := store.SaveSearch(ctx, "Sykler i Oslo", models.FilterConfig{Keywords: "sykkel", Category: models.CategoryTorget, Location: models.CountyOslo})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := store.SaveSearch(ctx, "Båter", models.FilterConfig{Category: models.CategoryBoats})
	require.NoError(t, err)

	all, err := store.ListSearches(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, models.CountyOslo, all[0].Filter.Location)
	assert.Equal(t, second.ID, all[1].ID)

	require.NoError(t, store.DeleteSearch(ctx, first.ID))
	assert.ErrorIs(t, store.DeleteSearch(ctx, first.ID), ErrNotFound)

	all, err = store.ListSearches(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRedisSaveSearchNeedsName(t *testing.T) {
	store, _ := newTestRedisStore(t)
	_, err := store.SaveSearch(context.Background(), "  ", models.FilterConfig{Category: models.CategoryTorget})

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestRedisFavoritesIdempotent(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	listing := models.Listing{ID: "100", Title: "Sykkel", Price: intPtr(1500), URL: "https://www.finn.no/100"}

	added, err := store.AddFavorite(ctx, listing)
	require.NoError(t, err)
	assert.True(t, added)

	changed := listing
	changed.Title = "Endret"
	added, err = store.AddFavorite(ctx, changed)
	require.NoError(t, err)
	assert.False(t, added)

	favs, err := store.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "Sykkel", favs[0].Title)
	require.NotNil(t, favs[0].Price)
	assert.Equal(t, 1500, *favs[0].Price)
	assert.True(t, mr.Exists(favoritesKey))

	require.NoError(t, store.RemoveFavorite(ctx, "100"))
	assert.ErrorIs(t, store.RemoveFavorite(ctx, "100"), ErrNotFound)
}

func TestRedisSkipsCorruptRecords(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.HSet(savedSearchesKey, "broken", "{not json")

	all, err := store.ListSearches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRedisUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))
	_, err := store.ListFavorites(context.Background())
	assert.Error(t, err)
}
