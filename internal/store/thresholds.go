// internal/store/thresholds.go
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tranche-workers/internal/common/database"
	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/metrics"
	"tranche-workers/internal/models"
	"tranche-workers/internal/pooling"
)

const (
	ThresholdKeyPrefix = "pooling:thresholds:"
	latestKey          = "latest"
)

// Cache layers reported by ThresholdLookups.
const (
	LayerMemory = "memory"
	LayerRedis  = "redis"
	LayerSource = "source"
)

// ThresholdStore serves threshold snapshots through an in-process map and a
// shared Redis layer in front of a ThresholdSource. Cached entries live until
// Invalidate is called; the Redis TTL only bounds staleness across replicas.
type ThresholdStore struct {
	source ThresholdSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger

	mu    sync.RWMutex
	cache map[string]*models.ThresholdConfig
}

func NewThresholdStore(source ThresholdSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *ThresholdStore {
	return &ThresholdStore{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "threshold-store"}),
		cache:  make(map[string]*models.ThresholdConfig),
	}
}

func cacheKey(version string) string {
	if version == "" {
		return latestKey
	}
	return version
}

// Get returns the snapshot for version, the latest one when version is empty.
// When no config exists at all, the latest lookup yields an empty snapshot so
// every rule runs on its built-in defaults.
func (s *ThresholdStore) Get(ctx context.Context, version string) (*models.ThresholdConfig, error) {
	key := cacheKey(version)

	s.mu.RLock()
	cfg, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		metrics.ThresholdLookups.WithLabelValues(LayerMemory).Inc()
		return cfg, nil
	}

	if s.redis != nil {
		if val, err := s.redis.Get(ctx, ThresholdKeyPrefix+key).Result(); err == nil {
			var cached models.ThresholdConfig
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				metrics.ThresholdLookups.WithLabelValues(LayerRedis).Inc()
				s.remember(key, &cached)
				return &cached, nil
			}
			s.logger.Warn("dropping undecodable cached thresholds", map[string]interface{}{"key": key})
		} else if !stderrors.Is(err, redis.Nil) {
			s.logger.Warn("threshold cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	cfg, err := s.source.Load(ctx, version)
	switch {
	case stderrors.Is(err, ErrThresholdsNotFound) && version == "":
		cfg = &models.ThresholdConfig{}
	case stderrors.Is(err, ErrThresholdsNotFound):
		return nil, errors.NewThresholdConfigNotFoundError(version)
	case err != nil:
		return nil, errors.NewThresholdConfigLoadFailedError(version, err)
	}

	if err := ValidateThresholds(cfg); err != nil {
		return nil, errors.NewThresholdConfigInvalidError(cfg.VersionOrDefault(), err)
	}
	metrics.ThresholdLookups.WithLabelValues(LayerSource).Inc()

	if s.redis != nil {
		if data, err := json.Marshal(cfg); err == nil {
			if err := s.redis.Set(ctx, ThresholdKeyPrefix+key, data, s.ttl).Err(); err != nil {
				s.logger.Warn("threshold cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
			}
		}
	}
	s.remember(key, cfg)

	s.logger.Info("threshold config loaded", map[string]interface{}{
		"requested": key,
		"version":   cfg.VersionOrDefault(),
	})
	return cfg, nil
}

func (s *ThresholdStore) remember(key string, cfg *models.ThresholdConfig) {
	s.mu.Lock()
	s.cache[key] = cfg
	s.mu.Unlock()
}

// Invalidate drops version from both cache layers, together with the latest
// alias. An empty version drops everything.
func (s *ThresholdStore) Invalidate(ctx context.Context, version string) error {
	s.mu.Lock()
	if version == "" {
		s.cache = make(map[string]*models.ThresholdConfig)
	} else {
		delete(s.cache, version)
		delete(s.cache, latestKey)
	}
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}

	if version == "" {
		if _, err := database.DeleteByPrefix(ctx, s.redis, ThresholdKeyPrefix); err != nil {
			return errors.NewCacheInvalidationFailedError(ThresholdKeyPrefix+"*", err)
		}
		return nil
	}

	keys := []string{ThresholdKeyPrefix + version, ThresholdKeyPrefix + latestKey}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return errors.NewCacheInvalidationFailedError(keys[0], err)
	}
	return nil
}

// LatestVersion asks the source, bypassing both caches.
func (s *ThresholdStore) LatestVersion(ctx context.Context) (string, error) {
	v, err := s.source.LatestVersion(ctx)
	if err != nil {
		if stderrors.Is(err, ErrThresholdsNotFound) {
			return "", nil
		}
		return "", errors.NewThresholdConfigLoadFailedError("latest", err)
	}
	return v, nil
}

// ValidateThresholds rejects non-finite bounds and descending tranche cutoffs.
func ValidateThresholds(cfg *models.ThresholdConfig) error {
	for group, sets := range cfg.Groups {
		for set, bounds := range sets {
			for key, v := range bounds.Values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%s.%s.%s is not finite", group, set, key)
				}
			}
		}
	}

	c := pooling.CutoffsFrom(cfg)
	if c.Senior > c.Mezzanine || c.Mezzanine > c.Subordinated {
		return fmt.Errorf("tranche cutoffs must ascend, got %v/%v/%v", c.Senior, c.Mezzanine, c.Subordinated)
	}
	return nil
}
