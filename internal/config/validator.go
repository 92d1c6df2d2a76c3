package config

import (
	"fmt"

	apperrors "dispatch/pkg/errors"
)

func ValidateStatic(cfg *Config) error {
	if err := validateProcessor(cfg.Processor); err != nil {
		return err
	}
	if err := validateRegistry(cfg.Registry); err != nil {
		return err
	}
	if err := validateFilter(cfg.Filter); err != nil {
		return err
	}
	return validateStats(cfg.Stats)
}

func validateProcessor(cfg ProcessorConfig) error {
	if cfg.MaxConcurrentHandlers < 1 {
		return invalid("processor.max_concurrent_handlers", "must be at least 1, got %d", cfg.MaxConcurrentHandlers)
	}
	if cfg.HandlerTimeout <= 0 {
		return invalid("processor.handler_timeout", "must be positive, got %s", cfg.HandlerTimeout)
	}
	if cfg.MaxRetries < 1 {
		return invalid("processor.max_retries", "must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.RetryBaseDelay < 0 {
		return invalid("processor.retry_base_delay", "must not be negative, got %s", cfg.RetryBaseDelay)
	}
	if cfg.CircuitFailureThreshold < 1 {
		return invalid("processor.circuit_failure_threshold", "must be at least 1, got %d", cfg.CircuitFailureThreshold)
	}
	if cfg.CircuitCooldown <= 0 {
		return invalid("processor.circuit_cooldown", "must be positive, got %s", cfg.CircuitCooldown)
	}
	return nil
}

func validateRegistry(cfg RegistryConfig) error {
	if cfg.InstanceCacheSize < 1 {
		return invalid("registry.instance_cache_size", "must be at least 1, got %d", cfg.InstanceCacheSize)
	}
	return nil
}

func validateFilter(cfg FilterConfig) error {
	if cfg.MaxEventAge < 0 {
		return invalid("filter.max_event_age", "must not be negative, got %s", cfg.MaxEventAge)
	}
	if len(cfg.AllowedScopes) > 0 && len(cfg.DeniedScopes) > 0 {
		return invalid("filter", "allowed_scopes and denied_scopes are mutually exclusive")
	}
	return nil
}

func validateStats(cfg StatsConfig) error {
	switch cfg.Backend {
	case "", "memory":
		return nil
	case "redis":
		if cfg.Redis.Host == "" {
			return invalid("stats.redis.host", "required when stats backend is redis")
		}
		if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
			return invalid("stats.redis.port", "must be between 1 and 65535, got %d", cfg.Redis.Port)
		}
		return nil
	default:
		return invalid("stats.backend", "must be %q or %q, got %q", "memory", "redis", cfg.Backend)
	}
}

func invalid(field, format string, args ...interface{}) error {
	return apperrors.ErrConfiguration.
		WithMessage("%s", fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)))
}
