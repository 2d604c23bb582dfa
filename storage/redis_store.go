package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"finn-deal-finder/models"
	"finn-deal-finder/utils"
)

const (
	savedSearchesKey = "finn:saved_searches"
	favoritesKey     = "finn:favorites"
)

// RedisStore keeps saved searches and favorites as JSON values in two
// Redis hashes.
type RedisStore struct {
	client *redis.Client
	logger *utils.Logger
	now    func() time.Time
}

// NewRedisClient creates a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func NewRedisStore(client *redis.Client, logger *utils.Logger) *RedisStore {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &RedisStore{client: client, logger: logger, now: time.Now}
}

// Ping tests the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// SaveSearch stores filter under a new ID.
func (s *RedisStore) SaveSearch(ctx context.Context, name string, filter models.FilterConfig) (models.SavedSearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SavedSearch{}, &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	saved := models.SavedSearch{
		ID:        uuid.NewString(),
		Name:      name,
		Filter:    filter,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return models.SavedSearch{}, fmt.Errorf("redis: encode search: %w", err)
	}
	if err := s.client.HSet(ctx, savedSearchesKey, saved.ID, data).Err(); err != nil {
		return models.SavedSearch{}, fmt.Errorf("redis: save search: %w", err)
	}

	s.logger.Info("[redis] Saved search %q (%s)", saved.Name, saved.ID)
	return saved, nil
}

// ListSearches returns all saved searches, oldest first.
func (s *RedisStore) ListSearches(ctx context.Context) ([]models.SavedSearch, error) {
	raw, err := s.client.HGetAll(ctx, savedSearchesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list searches: %w", err)
	}

	out := make([]models.SavedSearch, 0, len(raw))
	for id, v := range raw {
		var saved models.SavedSearch
		if err := json.Unmarshal([]byte(v), &saved); err != nil {
			s.logger.Warn("[redis] Skipping unreadable saved search %s: %v", id, err)
			continue
		}
		out = append(out, saved)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteSearch removes a saved search. Deleting an unknown ID is ErrNotFound.
func (s *RedisStore) DeleteSearch(ctx context.Context, id string) error {
	return s.delete(ctx, savedSearchesKey, id)
}

// AddFavorite bookmarks listing. It reports false when the listing was
// already a favorite; the stored copy is left untouched.
func (s *RedisStore) AddFavorite(ctx context.Context, listing models.Listing) (bool, error) {
	if strings.TrimSpace(listing.ID) == "" {
		return false, &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}

	data, err := json.Marshal(models.Favorite{Listing: listing, AddedAt: s.now().UTC()})
	if err != nil {
		return false, fmt.Errorf("redis: encode favorite: %w", err)
	}
	added, err := s.client.HSetNX(ctx, favoritesKey, listing.ID, data).Result()
	if err != nil {
		return false, fmt.Errorf("redis: add favorite: %w", err)
	}
	return added, nil
}

// ListFavorites returns all favorites, most recently added first.
func (s *RedisStore) ListFavorites(ctx context.Context) ([]models.Favorite, error) {
	raw, err := s.client.HGetAll(ctx, favoritesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list favorites: %w", err)
	}

	out := make([]models.Favorite, 0, len(raw))
	for id, v := range raw {
		var fav models.Favorite
		if err := json.Unmarshal([]byte(v), &fav); err != nil {
			s.logger.Warn("[redis] Skipping unreadable favorite %s: %v", id, err)
			continue
		}
		out = append(out, fav)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RemoveFavorite deletes a favorite by listing ID.
func (s *RedisStore) RemoveFavorite(ctx context.Context, id string) error {
	return s.delete(ctx, favoritesKey, id)
}

func (s *RedisStore) delete(ctx context.Context, key, id string) error {
	n, err := s.client.HDel(ctx, key, id).Result()
	if err != nil {
		return fmt.Errorf("redis: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
