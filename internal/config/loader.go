package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys that may be overridden from the environment. The variable name is
// the key uppercased with dots replaced by underscores, so
// database.postgres.host reads DATABASE_POSTGRES_HOST.
var envKeys = []string{
	"broker.kafka.brokers",
	"broker.kafka.group_id",
	"broker.kafka.input_topic",
	"broker.kafka.output_topic",
	"broker.kafka.config_update_topic",
	"broker.kafka.dlq_topic",

	"database.postgres.host",
	"database.postgres.port",
	"database.postgres.user",
	"database.postgres.password",
	"database.postgres.dbname",
	"database.postgres.sslmode",

	"database.redis.host",
	"database.redis.port",
	"database.redis.password",
	"database.redis.db",

	"database.mongodb.uri",
	"database.mongodb.database",

	"minio.endpoint",
	"minio.access_key",
	"minio.secret_key",
	"minio.bucket",
	"minio.use_ssl",

	"auth.enabled",
	"auth.jwt.secret",
	"auth.jwt.issuer",

	"server.port",
	"server.read_timeout_seconds",
	"server.write_timeout_seconds",

	"logging.level",
	"logging.format",

	"tracing.enabled",
	"tracing.service_name",
	"tracing.otlp.endpoint",
	"tracing.otlp.insecure",
}

// Load reads the YAML file, applies environment overrides and validates
// the result.
func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, key := range envKeys {
		viper.BindEnv(key, envName(key))
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyBrokerListOverride(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyBrokerListOverride splits BROKER_KAFKA_BROKERS on commas. Viper
// passes the raw string through for slice fields, so a comma-separated
// list would otherwise end up as one broker entry.
func applyBrokerListOverride(cfg *Config) {
	raw := viper.GetString("BROKER_KAFKA_BROKERS")
	if raw == "" {
		return
	}

	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) > 0 {
		cfg.Broker.Kafka.Brokers = brokers
	}
}
