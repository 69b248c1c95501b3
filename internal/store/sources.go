// internal/store/sources.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tranche-workers/internal/models"
)

// ErrThresholdsNotFound is returned by a source that has no config for the
// requested version.
var ErrThresholdsNotFound = stderrors.New("threshold config not found")

// ThresholdSource is the system of record behind the threshold cache. An
// empty version means the latest one.
type ThresholdSource interface {
	Load(ctx context.Context, version string) (*models.ThresholdConfig, error)
	LatestVersion(ctx context.Context) (string, error)
}

// PostgresThresholdSource reads the threshold_configs table.
type PostgresThresholdSource struct {
	db *sql.DB
}

func NewPostgresThresholdSource(db *sql.DB) *PostgresThresholdSource {
	return &PostgresThresholdSource{db: db}
}

const (
	thresholdByVersionQuery = `SELECT version, config FROM threshold_configs WHERE version = $1`
	latestThresholdQuery    = `SELECT version, config FROM threshold_configs ORDER BY created_at DESC, version DESC LIMIT 1`
	latestVersionQuery      = `SELECT version FROM threshold_configs ORDER BY created_at DESC, version DESC LIMIT 1`
)

func (s *PostgresThresholdSource) Load(ctx context.Context, version string) (*models.ThresholdConfig, error) {
	var row *sql.Row
	if version == "" {
		row = s.db.QueryRowContext(ctx, latestThresholdQuery)
	} else {
		row = s.db.QueryRowContext(ctx, thresholdByVersionQuery, version)
	}

	var (
		stored string
		raw    []byte
	)
	if err := row.Scan(&stored, &raw); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrThresholdsNotFound
		}
		return nil, err
	}

	var cfg models.ThresholdConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode threshold config %s: %w", stored, err)
	}
	cfg.Version = stored
	return &cfg, nil
}

func (s *PostgresThresholdSource) LatestVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, latestVersionQuery).Scan(&version)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return version, err
}

// FileThresholdSource reads a single YAML threshold document.
type FileThresholdSource struct {
	path string
}

func NewFileThresholdSource(path string) *FileThresholdSource {
	return &FileThresholdSource{path: path}
}

func (s *FileThresholdSource) Path() string {
	return s.path
}

func (s *FileThresholdSource) Load(_ context.Context, version string) (*models.ThresholdConfig, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	if version != "" && version != cfg.Version {
		return nil, ErrThresholdsNotFound
	}
	return cfg, nil
}

func (s *FileThresholdSource) LatestVersion(_ context.Context) (string, error) {
	cfg, err := s.read()
	if err != nil {
		return "", err
	}
	return cfg.Version, nil
}

func (s *FileThresholdSource) read() (*models.ThresholdConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, ErrThresholdsNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var cfg models.ThresholdConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return &cfg, nil
}
