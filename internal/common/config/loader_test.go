// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: tranche-workers
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: lending
    user: pool
    password: ${TEST_POOL_DB_PASSWORD}
  redis:
    address: localhost:6379
workers:
  allocate-tranches:
    enabled: true
    max_jobs_active: 2
pooling:
  threshold_version: v3
  refresh_schedule: "*/5 * * * *"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_POOL_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "v3", cfg.Pooling.ThresholdVersion)
	assert.Equal(t, ThresholdSourcePostgres, cfg.Pooling.ThresholdSource)
	assert.Equal(t, 300, cfg.Pooling.CacheTTL)
	assert.False(t, cfg.Pooling.Scoring.Enabled())
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "tranche-workers", cfg.Observability.ServiceName)

	w := GetWorkerConfig(cfg, "allocate-tranches")
	assert.True(t, w.Enabled)
	assert.Equal(t, 2, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "group-loan-pools"))
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("POOLING_THRESHOLD_VERSION", "v9")
	t.Setenv("SCORING_SERVICE_URL", "http://model:8000/predict")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "v9", cfg.Pooling.ThresholdVersion)
	assert.True(t, cfg.Pooling.Scoring.Enabled())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "file source needs a path",
			extra:   "\n  threshold_source: file\n",
			wantErr: "pooling.thresholds_file is required",
		},
		{
			name:    "unknown source",
			extra:   "\n  threshold_source: s3\n",
			wantErr: "pooling.threshold_source must be",
		},
		{
			name:    "notifications need a topic",
			extra:   "\n  notifications:\n    enabled: true\n",
			wantErr: "topic_arn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, baseYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_BadCron(t *testing.T) {
	content := baseYAML + "\n  thresholds_file: x.yaml\n"
	content = strings.Replace(content, `"*/5 * * * *"`, `"every five minutes"`, 1)

	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pooling.refresh_schedule")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
