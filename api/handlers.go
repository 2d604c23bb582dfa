package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"finn-deal-finder/models"
	"finn-deal-finder/scraper/finn"
	"finn-deal-finder/storage"
	"finn-deal-finder/utils"
)

const maxBodyBytes = 4 << 20

// Searcher runs one search.
type Searcher interface {
	Run(ctx context.Context, cfg models.FilterConfig) (*models.SearchResult, error)
}

var categoryNames = map[models.Category]string{
	models.CategoryTorget:      "Torget",
	models.CategoryCars:        "Bil",
	models.CategoryRealEstate:  "Eiendom",
	models.CategoryMotorcycles: "MC",
	models.CategoryBoats:       "Båt",
}

type Handler struct {
	searcher  Searcher
	searches  storage.SearchStore
	favorites storage.FavoriteStore
	logger    *utils.Logger
}

// NewHandler wires the HTTP handlers. searches and favorites may be nil when
// no store is configured; their routes then answer 503.
func NewHandler(searcher Searcher, searches storage.SearchStore, favorites storage.FavoriteStore, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Handler{searcher: searcher, searches: searches, favorites: favorites, logger: logger}
}

type errorBody struct {
	Error    string   `json:"error"`
	Field    string   `json:"field,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Stage    string   `json:"stage,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type categoryBody struct {
	ID   models.Category `json:"id"`
	Name string          `json:"name"`
}

type saveSearchRequest struct {
	Name   string              `json:"name"`
	Filter models.FilterConfig `json:"filter"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats := finn.Categories()
	out := make([]categoryBody, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryBody{ID: c, Name: categoryNames[c]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var cfg models.FilterConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	result, err := h.searcher.Run(r.Context(), cfg)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeSearchError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: vErr.Error(), Field: vErr.Field, Reason: vErr.Reason})
		return
	}

	body := errorBody{Error: err.Error()}
	var pErr *models.PipelineError
	if errors.As(err, &pErr) {
		body.Stage = string(pErr.Stage)
		body.Warnings = pErr.Warnings
	}

	status := http.StatusBadGateway
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	h.logger.Warn("[api] Search failed: %v", err)
	writeJSON(w, status, body)
}

func (h *Handler) ListSavedSearches(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.searches != nil) {
		return
	}
	searches, err := h.searches.ListSearches(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searches)
}

func (h *Handler) CreateSavedSearch(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.searches != nil) {
		return
	}
	var req saveSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := h.searches.SaveSearch(r.Context(), req.Name, req.Filter)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) DeleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.searches != nil) {
		return
	}
	if err := h.searches.DeleteSearch(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.favorites != nil) {
		return
	}
	favs, err := h.favorites.ListFavorites(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// AddFavorite answers 201 for a new favorite and 200 when it already existed.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.favorites != nil) {
		return
	}
	var listing models.Listing
	if !decodeBody(w, r, &listing) {
		return
	}
	added, err := h.favorites.AddFavorite(r.Context(), listing)
	if err != nil {
		h.storeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"id": listing.ID, "added": added})
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, h.favorites != nil) {
		return
	}
	if err := h.favorites.RemoveFavorite(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV renders a posted SearchResult as a CSV download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var result models.SearchResult
	if !decodeBody(w, r, &result) {
		return
	}

	var buf bytes.Buffer
	if err := storage.WriteCSV(&buf, &result); err != nil {
		h.logger.Error("[api] CSV export failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not render csv"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="finn_deals.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ExportJSON renders a posted SearchResult as a JSON download.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	var result models.SearchResult
	if !decodeBody(w, r, &result) {
		return
	}

	var buf bytes.Buffer
	if err := storage.WriteJSON(&buf, &result, "", time.Now()); err != nil {
		h.logger.Error("[api] JSON export failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not render json"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="finn_deals.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) requireStore(w http.ResponseWriter, ok bool) bool {
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage is not configured"})
	}
	return ok
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: vErr.Error(), Field: vErr.Field, Reason: vErr.Reason})
	default:
		h.logger.Error("[api] Store error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage unavailable"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
