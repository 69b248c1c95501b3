// internal/workers/pooling/refresh-thresholds/models.go
package refreshthresholds

import "time"

type Input struct {
	Version string `json:"version,omitempty"` // empty = every cached version
}

type Output struct {
	Invalidated   string    `json:"invalidated"`
	LatestVersion string    `json:"latestVersion"`
	LoadedVersion string    `json:"loadedVersion,omitempty"`
	RefreshedAt   time.Time `json:"refreshedAt"`
}
