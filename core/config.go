package core

import (
	"fmt"
	"time"
)

// Config carries every tunable of the dispatch engine. Field tags follow
// the loader conventions so the same struct works for koanf sources and
// mapstructure decoding.
type Config struct {
	// WebhookTimeout bounds a single outbound HTTP delivery.
	WebhookTimeout time.Duration `koanf:"webhook_timeout" mapstructure:"webhook_timeout" json:"webhook_timeout"`

	// MaxResponseBody caps how much of a destination response is stored on
	// the attempt record.
	MaxResponseBody int `koanf:"max_response_body" mapstructure:"max_response_body" json:"max_response_body"`

	// SweepInterval is how often the retry sweep job runs.
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval" json:"sweep_interval"`

	// SweepBatchSize bounds how many due records one sweep pass claims.
	SweepBatchSize int `koanf:"sweep_batch_size" mapstructure:"sweep_batch_size" json:"sweep_batch_size"`

	// AllowLocalDestinations disables the private-address rejection for
	// outbound deliveries. Meant for development environments only.
	AllowLocalDestinations bool `koanf:"allow_local_destinations" mapstructure:"allow_local_destinations" json:"allow_local_destinations"`

	// CustomEndpoints governs operator-supplied provider base URLs.
	CustomEndpoints CustomEndpointsConfig `koanf:"custom_endpoints" mapstructure:"custom_endpoints" json:"custom_endpoints"`

	// LoopGuard bounds agent webhook feedback loops.
	LoopGuard LoopGuardConfig `koanf:"loop_guard" mapstructure:"loop_guard" json:"loop_guard"`

	// HealthCheckMaxFailures caps how many decrypt failures the encryption
	// health scan reports in detail.
	HealthCheckMaxFailures int `koanf:"health_check_max_failures" mapstructure:"health_check_max_failures" json:"health_check_max_failures"`

	// StorageKeyPrefix is prepended to every storage destination object key.
	StorageKeyPrefix string `koanf:"storage_key_prefix" mapstructure:"storage_key_prefix" json:"storage_key_prefix"`

	// SignatureHeader and TimestampHeader name the outbound signature
	// headers attached to signed webhook deliveries.
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header" json:"signature_header"`
	TimestampHeader string `koanf:"timestamp_header" mapstructure:"timestamp_header" json:"timestamp_header"`
}

// CustomEndpointsConfig controls whether operators may point providers at
// their own base URLs and which hosts are acceptable.
type CustomEndpointsConfig struct {
	Allow     bool     `koanf:"allow" mapstructure:"allow" json:"allow"`
	Allowlist []string `koanf:"allowlist" mapstructure:"allowlist" json:"allowlist"`
}

// LoopGuardConfig tunes the sliding-window loop suppressor.
type LoopGuardConfig struct {
	Threshold  int           `koanf:"threshold" mapstructure:"threshold" json:"threshold"`
	Window     time.Duration `koanf:"window" mapstructure:"window" json:"window"`
	MaxEntries int           `koanf:"max_entries" mapstructure:"max_entries" json:"max_entries"`
}

// DefaultConfig returns the engine defaults. Callers layer their own
// sources over these through the options resolver.
func DefaultConfig() Config {
	return Config{
		WebhookTimeout:  30 * time.Second,
		MaxResponseBody: 4096,
		SweepInterval:   30 * time.Second,
		SweepBatchSize:  50,
		CustomEndpoints: CustomEndpointsConfig{},
		LoopGuard: LoopGuardConfig{
			Threshold:  10,
			Window:     time.Minute,
			MaxEntries: 4096,
		},
		HealthCheckMaxFailures: 25,
		StorageKeyPrefix:       "cavendo/",
		SignatureHeader:        "X-Cavendo-Signature",
		TimestampHeader:        "X-Cavendo-Timestamp",
	}
}

func (c *Config) Validate() error {
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("core: webhook timeout must be positive")
	}
	if c.MaxResponseBody <= 0 {
		return fmt.Errorf("core: max response body must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("core: sweep interval must be positive")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("core: sweep batch size must be positive")
	}
	if c.LoopGuard.Threshold <= 0 {
		return fmt.Errorf("core: loop guard threshold must be positive")
	}
	if c.LoopGuard.Window <= 0 {
		return fmt.Errorf("core: loop guard window must be positive")
	}
	if c.HealthCheckMaxFailures <= 0 {
		return fmt.Errorf("core: health check failure cap must be positive")
	}
	if c.SignatureHeader == "" || c.TimestampHeader == "" {
		return fmt.Errorf("core: signature header names must not be empty")
	}
	return nil
}
