package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finn-deal-finder/models"
	"finn-deal-finder/storage"
)

type fakeSearcher struct {
	result *models.SearchResult
	err    error
	got    models.FilterConfig
}

func (f *fakeSearcher) Run(_ context.Context, cfg models.FilterConfig) (*models.SearchResult, error) {
	f.got = cfg
	return f.result, f.err
}

func newTestRouter(t *testing.T, searcher Searcher) http.Handler {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := storage.NewRedisStore(storage.NewRedisClient(mr.Addr(), "", 0), nil)
	t.Cleanup(func() { _ = store.Close() })

	return NewRouter(NewHandler(searcher, store, store, nil), nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCategories(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []categoryBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	require.Len(t, cats, 5)
	assert.Equal(t, models.CategoryTorget, cats[0].ID)
	assert.Equal(t, "Torget", cats[0].Name)
}

func TestSearchSuccess(t *testing.T) {
	p := 1500
	searcher := &fakeSearcher{result: &models.SearchResult{
		Listings: []models.ScoredListing{{
			Listing:   models.Listing{ID: "1", Title: "Sykkel", Price: &p, URL: "https://www.finn.no/1"},
			DealScore: 50, DealBand: models.BandGood,
		}},
		Stats:        models.PriceStats{Count: 1},
		PagesFetched: 1,
		Warnings:     []string{},
	}}
	h := newTestRouter(t, searcher)

	rec := do(t, h, http.MethodPost, "/api/search", `{"keywords":"sykkel","category":"torget","priceMax":2000,"maxPages":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "sykkel", searcher.got.Keywords)
	require.NotNil(t, searcher.got.PriceMax)
	assert.Equal(t, 2000, *searcher.got.PriceMax)
	assert.Equal(t, 2, searcher.got.MaxPages)

	var result models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Listings, 1)
	assert.Equal(t, "good", string(result.Listings[0].DealBand))
}

func TestSearchValidationError(t *testing.T) {
	searcher := &fakeSearcher{err: &models.PipelineError{
		Stage:  models.StageValidating,
		Reason: "invalid search",
		Err:    &models.ValidationError{Field: "priceMin", Reason: "900 is greater than priceMax 100"},
	}}
	h := newTestRouter(t, searcher)

	rec := do(t, h, http.MethodPost, "/api/search", `{"category":"torget","priceMin":900,"priceMax":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "priceMin", body.Field)
}

func TestSearchUpstreamFailure(t *testing.T) {
	searcher := &fakeSearcher{err: &models.PipelineError{
		Stage:  models.StageFetching,
		Reason: "could not reach the search page",
		Err:    &models.FetchFailure{Page: 0, StatusCode: 503},
	}}
	h := newTestRouter(t, searcher)

	rec := do(t, h, http.MethodPost, "/api/search", `{"category":"torget"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fetching", body.Stage)
	assert.Contains(t, body.Error, "status 503")
}

func TestSearchCancelled(t *testing.T) {
	searcher := &fakeSearcher{err: &models.PipelineError{Stage: models.StageFetching, Reason: "search cancelled", Err: context.DeadlineExceeded}}
	h := newTestRouter(t, searcher)

	rec := do(t, h, http.MethodPost, "/api/search", `{"category":"torget"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestSearchBadBody(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{err: errors.New("must not be called")})

	rec := do(t, h, http.MethodPost, "/api/search", `{"category":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSavedSearchLifecycle(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})

	rec := do(t, h, http.MethodPost, "/api/saved-searches", `{"name":"Sykler","filter":{"keywords":"sykkel","category":"torget"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved models.SavedSearch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ID)

	rec = do(t, h, http.MethodGet, "/api/saved-searches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []models.SavedSearch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "sykkel", all[0].Filter.Keywords)

	rec = do(t, h, http.MethodDelete, "/api/saved-searches/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/saved-searches/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavedSearchNeedsName(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})
	rec := do(t, h, http.MethodPost, "/api/saved-searches", `{"filter":{"category":"torget"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavoritesLifecycle(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})
	fav := `{"id":"123","title":"Sykkel","url":"https://www.finn.no/123","price":1500}`

	rec := do(t, h, http.MethodPost, "/api/favorites", fav)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/favorites", fav)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []models.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, "123", favs[0].ID)

	rec = do(t, h, http.MethodDelete, "/api/favorites/123", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStoreNotConfigured(t *testing.T) {
	h := NewRouter(NewHandler(&fakeSearcher{}, nil, nil, nil), nil)

	rec := do(t, h, http.MethodGet, "/api/favorites", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/saved-searches", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportCSV(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})

	body := `{"listings":[{"id":"1","title":"Sykkel","url":"https://www.finn.no/1","price":100,"dealScore":70,"dealBand":"great","priceUnknown":false}],"stats":{"count":1},"pagesFetched":1,"warnings":[]}`
	rec := do(t, h, http.MethodPost, "/api/export/csv", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "finn_deals.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1,Sykkel,100,,https://www.finn.no/1,70,great,false,,", lines[1])
}

func TestExportJSON(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})

	body := `{"listings":[{"id":"1","title":"Sykkel","url":"https://www.finn.no/1","price":100,"dealScore":70,"dealBand":"great","priceUnknown":false}],"stats":{"count":1},"pagesFetched":1,"warnings":[]}`
	rec := do(t, h, http.MethodPost, "/api/export/json", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "finn_deals.json")

	var export storage.JSONExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, 1, export.ExportInfo.TotalItems)
	require.Len(t, export.Items, 1)
	assert.Equal(t, "Sykkel", export.Items[0].Title)
	assert.Equal(t, 70, export.Items[0].DealScore)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, &fakeSearcher{})
	rec := do(t, h, http.MethodGet, "/api/search", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
