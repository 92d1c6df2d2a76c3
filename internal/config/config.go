package config

import (
	"runtime"
	"time"
)

type Config struct {
	Processor ProcessorConfig `mapstructure:"processor"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Source    SourceConfig    `mapstructure:"source"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ProcessorConfig struct {
	MaxConcurrentHandlers   int           `mapstructure:"max_concurrent_handlers"`
	HandlerTimeout          time.Duration `mapstructure:"handler_timeout"`
	MaxRetries              int           `mapstructure:"max_retries"`
	RetryBaseDelay          time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay           time.Duration `mapstructure:"retry_max_delay"`
	CircuitFailureThreshold int           `mapstructure:"circuit_failure_threshold"`
	CircuitCooldown         time.Duration `mapstructure:"circuit_cooldown"`
}

type RegistryConfig struct {
	InstanceCacheSize int `mapstructure:"instance_cache_size"`
}

type FilterConfig struct {
	// MaxEventAge of zero disables the age predicate.
	MaxEventAge   time.Duration `mapstructure:"max_event_age"`
	AllowedScopes []string      `mapstructure:"allowed_scopes"`
	DeniedScopes  []string      `mapstructure:"denied_scopes"`
}

type StatsConfig struct {
	Backend string        `mapstructure:"backend"` // "memory" or "redis"
	Redis   RedisConfig   `mapstructure:"redis"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SourceConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Default() *Config {
	return &Config{
		Processor: ProcessorConfig{
			MaxConcurrentHandlers:   runtime.NumCPU(),
			HandlerTimeout:          30 * time.Second,
			MaxRetries:              3,
			RetryBaseDelay:          100 * time.Millisecond,
			RetryMaxDelay:           30 * time.Second,
			CircuitFailureThreshold: 5,
			CircuitCooldown:         300 * time.Second,
		},
		Registry: RegistryConfig{
			InstanceCacheSize: 128,
		},
		Stats: StatsConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
