package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("processor.max_concurrent_handlers", runtime.NumCPU())
	viper.SetDefault("processor.handler_timeout", 30*time.Second)
	viper.SetDefault("processor.max_retries", 3)
	viper.SetDefault("processor.retry_base_delay", 100*time.Millisecond)
	viper.SetDefault("processor.retry_max_delay", 30*time.Second)
	viper.SetDefault("processor.circuit_failure_threshold", 5)
	viper.SetDefault("processor.circuit_cooldown", 300*time.Second)
	viper.SetDefault("registry.instance_cache_size", 128)
	viper.SetDefault("filter.max_event_age", time.Duration(0))
	viper.SetDefault("stats.backend", "memory")
	viper.SetDefault("stats.ttl", 24*time.Hour)
	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("processor.max_concurrent_handlers", "PROCESSOR_MAX_CONCURRENT_HANDLERS")
	viper.BindEnv("processor.handler_timeout", "PROCESSOR_HANDLER_TIMEOUT")
	viper.BindEnv("processor.max_retries", "PROCESSOR_MAX_RETRIES")
	viper.BindEnv("processor.retry_base_delay", "PROCESSOR_RETRY_BASE_DELAY")
	viper.BindEnv("processor.circuit_failure_threshold", "PROCESSOR_CIRCUIT_FAILURE_THRESHOLD")
	viper.BindEnv("processor.circuit_cooldown", "PROCESSOR_CIRCUIT_COOLDOWN")

	viper.BindEnv("stats.backend", "STATS_BACKEND")
	viper.BindEnv("stats.redis.host", "STATS_REDIS_HOST")
	viper.BindEnv("stats.redis.port", "STATS_REDIS_PORT")
	viper.BindEnv("stats.redis.password", "STATS_REDIS_PASSWORD")
	viper.BindEnv("stats.redis.db", "STATS_REDIS_DB")

	viper.BindEnv("source.kafka.brokers", "SOURCE_KAFKA_BROKERS")
	viper.BindEnv("source.kafka.group_id", "SOURCE_KAFKA_GROUP_ID")
	viper.BindEnv("source.kafka.topic", "SOURCE_KAFKA_TOPIC")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("SOURCE_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Source.Kafka.Brokers = brokers
		}
	}
}
