// internal/workers/pooling/refresh-thresholds/handler_test.go
package refreshthresholds

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tranche-workers/internal/common/config"
	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/models"
	"tranche-workers/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSource struct {
	cfgs   map[string]*models.ThresholdConfig
	latest string
	loads  int
	err    error
}

func (f *fakeSource) Load(_ context.Context, version string) (*models.ThresholdConfig, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	if version == "" {
		version = f.latest
	}
	cfg, ok := f.cfgs[version]
	if !ok {
		return nil, store.ErrThresholdsNotFound
	}
	return cfg, nil
}

func (f *fakeSource) LatestVersion(_ context.Context) (string, error) {
	return f.latest, f.err
}

func cutoffs(version string, senior float64) *models.ThresholdConfig {
	return &models.ThresholdConfig{
		Version: version,
		Groups: map[string]models.ThresholdGroup{
			models.GroupTranche: {
				models.SetCutoffs: {Values: map[string]float64{"Senior": senior, "Mezzanine": senior + 5, "Subordinated": senior + 10}},
			},
		},
	}
}

func setup(t *testing.T) (*fakeSource, *store.ThresholdStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &fakeSource{
		cfgs:   map[string]*models.ThresholdConfig{"v1": cutoffs("v1", 30)},
		latest: "v1",
	}
	return src, store.NewThresholdStore(src, rdb, time.Minute, logger.NewTestLogger(t)), mr
}

func createTestHandler(t *testing.T, cache ThresholdCache) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second, Warm: true}, cache, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_PicksUpNewVersion(t *testing.T) {
	ctx := context.Background()
	src, cache, mr := setup(t)

	cfg, err := cache.Get(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "v1", cfg.Version)
	loadsBefore := src.loads

	src.cfgs["v2"] = cutoffs("v2", 35)
	src.latest = "v2"

	// still cached
	cfg, err = cache.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "v1", cfg.Version)

	h := createTestHandler(t, cache)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	output, err := h.Execute(ctx, &Input{})
	require.NoError(t, err)
	assert.Equal(t, "all", output.Invalidated)
	assert.Equal(t, "v2", output.LatestVersion)
	assert.Equal(t, "v2", output.LoadedVersion)
	assert.Equal(t, fixed, output.RefreshedAt)
	assert.Greater(t, src.loads, loadsBefore)
	assert.True(t, mr.Exists(store.ThresholdKeyPrefix+"latest"))

	cfg, err = cache.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Version)
}

func TestHandler_Execute_SingleVersion(t *testing.T) {
	ctx := context.Background()
	_, cache, mr := setup(t)
	_, err := cache.Get(ctx, "v1")
	require.NoError(t, err)
	mr.Set("unrelated", "keep")

	h := NewHandler(&Config{Timeout: time.Second}, cache, logger.NewTestLogger(t))
	output, err := h.Execute(ctx, &Input{Version: "v1"})
	require.NoError(t, err)

	assert.Equal(t, "v1", output.Invalidated)
	assert.Empty(t, output.LoadedVersion, "warm-up disabled")
	assert.False(t, mr.Exists(store.ThresholdKeyPrefix+"v1"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestHandler_Execute_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown version on warm-up", func(t *testing.T) {
		_, cache, _ := setup(t)
		_, err := createTestHandler(t, cache).Execute(ctx, &Input{Version: "v9"})
		require.Error(t, err)
		assert.Equal(t, "THRESHOLD_CONFIG_NOT_FOUND", errors.CodeOf(err))
	})

	t.Run("broken config on warm-up", func(t *testing.T) {
		src, cache, _ := setup(t)
		src.cfgs["v3"] = cutoffs("v3", 30)
		src.cfgs["v3"].Groups[models.GroupTranche][models.SetCutoffs].Values["Subordinated"] = 10
		_, err := createTestHandler(t, cache).Execute(ctx, &Input{Version: "v3"})
		assert.Equal(t, "THRESHOLD_CONFIG_INVALID", errors.CodeOf(err))
	})

	t.Run("source down", func(t *testing.T) {
		src, cache, _ := setup(t)
		src.err = stderrors.New("connection refused")
		_, err := createTestHandler(t, cache).Execute(ctx, &Input{})
		assert.Equal(t, "THRESHOLD_CONFIG_LOAD_FAILED", errors.CodeOf(err))
		assert.False(t, errors.IsBusinessError(err))
	})
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(config.WorkerConfig{Timeout: 2500})
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.Warm)

	assert.Equal(t, 10*time.Second, NewConfig(config.WorkerConfig{}).Timeout)
	assert.NoError(t, NewConfig(config.WorkerConfig{}).Validate())
	assert.Error(t, (&Config{}).Validate())
}
