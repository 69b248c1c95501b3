// internal/workers/pooling/refresh-thresholds/config.go
package refreshthresholds

import (
	"fmt"
	"time"

	"tranche-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Warm    bool // reload the version after invalidating it
}

func NewConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout, Warm: true}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
