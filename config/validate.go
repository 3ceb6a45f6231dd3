package config

import (
	"fmt"
	"strings"

	"saccochain/crypto"
)

// Validate rejects configurations the daemon cannot start with. It runs after
// Load so defaulting has already happened.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if cfg.Gateway.Enabled {
		if strings.TrimSpace(cfg.GatewayAddress) == "" {
			return fmt.Errorf("config: GatewayAddress must not be empty when the gateway is enabled")
		}
		if strings.TrimSpace(cfg.Gateway.JWTSecretEnv) == "" {
			return fmt.Errorf("config: Gateway.JWTSecretEnv must name the env var holding the signing secret")
		}
		if cfg.Gateway.RateLimitPerMin < 0 {
			return fmt.Errorf("config: Gateway.RateLimitPerMin must not be negative")
		}
	}
	if cfg.Webhooks.Enabled {
		if strings.TrimSpace(cfg.Webhooks.Endpoint) == "" {
			return fmt.Errorf("config: Webhooks.Endpoint must not be empty when webhooks are enabled")
		}
		if strings.TrimSpace(cfg.Webhooks.SecretEnv) == "" {
			return fmt.Errorf("config: Webhooks.SecretEnv must name the env var holding the signing secret")
		}
	}
	if source := strings.TrimSpace(cfg.YieldSource); source != "" {
		if _, err := crypto.DecodeAddress(source); err != nil {
			return fmt.Errorf("config: invalid YieldSource: %w", err)
		}
	}
	if cfg.Telemetry.EnableTraces || cfg.Telemetry.EnableMetrics {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return fmt.Errorf("config: Telemetry.Endpoint required when exporters are enabled")
		}
	}
	return nil
}
