package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/models"
)

// featureCache is the subset of *redis.Client the feature store needs.
type featureCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// FeatureStore caches per-person clustering features in Redis.
type FeatureStore struct {
	cache    featureCache
	prefix   string
	cacheTTL time.Duration
}

func NewFeatureStore(client *redis.Client, prefix string, ttl time.Duration) *FeatureStore {
	return newFeatureStore(client, prefix, ttl)
}

func newFeatureStore(cache featureCache, prefix string, ttl time.Duration) *FeatureStore {
	return &FeatureStore{cache: cache, prefix: prefix, cacheTTL: ttl}
}

func (f *FeatureStore) key(personID string) string {
	return fmt.Sprintf("%s%s", f.prefix, personID)
}

// MaterializeFeatures writes every feature set. It stops at the first failure.
func (f *FeatureStore) MaterializeFeatures(ctx context.Context, sets []models.FeatureSet) error {
	for _, set := range sets {
		data, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("encoding features for %s: %w", set.PersonID, err)
		}
		if err := f.cache.Set(ctx, f.key(set.PersonID), data, f.cacheTTL).Err(); err != nil {
			return fmt.Errorf("caching features for %s: %w", set.PersonID, err)
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"persons": len(sets),
		"ttl":     f.cacheTTL.String(),
	}).Debug("Materialized features to cache")
	return nil
}

// GetFeatures returns ErrNotFound when nothing is cached for the person.
func (f *FeatureStore) GetFeatures(ctx context.Context, personID string) (models.FeatureSet, error) {
	var set models.FeatureSet

	data, err := f.cache.Get(ctx, f.key(personID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return set, ErrNotFound
	}
	if err != nil {
		return set, fmt.Errorf("reading features for %s: %w", personID, err)
	}
	if err := json.Unmarshal(data, &set); err != nil {
		return set, fmt.Errorf("decoding features for %s: %w", personID, err)
	}
	return set, nil
}
