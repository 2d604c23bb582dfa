package storage

import (
	"context"
	"errors"

	"finn-deal-finder/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// ResultWriter persists a completed SearchResult.
type ResultWriter interface {
	Write(ctx context.Context, result *models.SearchResult, category models.Category) error
	Close() error
}

// SearchStore keeps saved searches addressed by ID.
type SearchStore interface {
	SaveSearch(ctx context.Context, name string, filter models.FilterConfig) (models.SavedSearch, error)
	ListSearches(ctx context.Context) ([]models.SavedSearch, error)
	DeleteSearch(ctx context.Context, id string) error
}

// FavoriteStore keeps bookmarked listings addressed by listing ID.
type FavoriteStore interface {
	AddFavorite(ctx context.Context, listing models.Listing) (bool, error)
	ListFavorites(ctx context.Context) ([]models.Favorite, error)
	RemoveFavorite(ctx context.Context, id string) error
}
