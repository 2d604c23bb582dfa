package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finn-deal-finder/utils"
)

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handler, logger *utils.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/categories", h.Categories).Methods(http.MethodGet)
	api.HandleFunc("/search", h.Search).Methods(http.MethodPost)

	api.HandleFunc("/saved-searches", h.ListSavedSearches).Methods(http.MethodGet)
	api.HandleFunc("/saved-searches", h.CreateSavedSearch).Methods(http.MethodPost)
	api.HandleFunc("/saved-searches/{id}", h.DeleteSavedSearch).Methods(http.MethodDelete)

	api.HandleFunc("/favorites", h.ListFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.AddFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites/{id}", h.RemoveFavorite).Methods(http.MethodDelete)

	api.HandleFunc("/export/csv", h.ExportCSV).Methods(http.MethodPost)
	api.HandleFunc("/export/json", h.ExportJSON).Methods(http.MethodPost)

	return r
}

func requestLogger(logger *utils.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("[api] %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
		})
	}
}

// NewServer wraps router in an http.Server with conservative timeouts. The
// write timeout leaves room for a multi-page search.
func NewServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}
