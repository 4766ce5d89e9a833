package resilience

import (
	"time"

	"github.com/sells-group/zoning-cli/internal/config"
)

// RetryFromConfig builds a RetryConfig from client settings, keeping defaults
// for unset values.
func RetryFromConfig(cfg config.ClientConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	return rc
}

// BreakerFromConfig builds a BreakerConfig from client settings.
func BreakerFromConfig(cfg config.ClientConfig) BreakerConfig {
	bc := DefaultBreakerConfig()
	if cfg.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutSecs > 0 {
		bc.ResetTimeout = time.Duration(cfg.ResetTimeoutSecs) * time.Second
	}
	return bc
}
