package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
}

type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key prefixes.
type RedisSettings struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	RevocationPrefix string        `mapstructure:"revocation_prefix"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
	TokenEpochPrefix string        `mapstructure:"token_epoch_prefix"`
	TokenEpochTTL    time.Duration `mapstructure:"token_epoch_ttl"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures per-scope sliding windows. The degradation
// policy decides what a store outage does to admission: fail_open admits,
// fail_closed rejects.
type RateLimitSettings struct {
	DegradationPolicy  string        `mapstructure:"degradation_policy"`
	LoginMaxAttempts   int           `mapstructure:"login_max_attempts"`
	LoginWindow        time.Duration `mapstructure:"login_window"`
	SecondFactorMax    int           `mapstructure:"second_factor_max_attempts"`
	SecondFactorWindow time.Duration `mapstructure:"second_factor_window"`
	APIKeyMaxRequests  int           `mapstructure:"api_key_max_requests"`
	APIKeyWindow       time.Duration `mapstructure:"api_key_window"`
}

// LockoutSettings configures the failed-attempt counter.
type LockoutSettings struct {
	Threshold    uint          `mapstructure:"threshold"`
	LockDuration time.Duration `mapstructure:"lock_duration"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	Issuer                 string        `mapstructure:"issuer"`
	KeyDirectory           string        `mapstructure:"key_directory"`
	AccessTokenTTL         time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL        time.Duration `mapstructure:"refresh_token_ttl"`
	PendingSecondFactorTTL time.Duration `mapstructure:"pending_second_factor_ttl"`
}

type TelemetrySettings struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHCORE")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.revocation_prefix",
		"redis.rate_limit_prefix",
		"redis.token_epoch_prefix",
		"redis.token_epoch_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.issuer",
		"jwt.key_directory",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.pending_second_factor_ttl",
		"telemetry.metrics_enabled",
		"rate_limit.degradation_policy",
		"rate_limit.login_max_attempts",
		"rate_limit.login_window",
		"rate_limit.second_factor_max_attempts",
		"rate_limit.second_factor_window",
		"rate_limit.api_key_max_requests",
		"rate_limit.api_key_window",
		"lockout.threshold",
		"lockout.lock_duration",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authcore")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "authcore")
	v.SetDefault("postgres.password", "authcore_password")
	v.SetDefault("postgres.database", "authcore")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.revocation_prefix", "authcore:revoked")
	v.SetDefault("redis.rate_limit_prefix", "authcore:ratelimit")
	v.SetDefault("redis.token_epoch_prefix", "authcore:token-epoch")
	v.SetDefault("redis.token_epoch_ttl", "10m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "authcore")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.issuer", "authcore")
	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.pending_second_factor_ttl", "5m")

	v.SetDefault("telemetry.metrics_enabled", true)

	v.SetDefault("rate_limit.degradation_policy", "fail_open")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.login_window", "5m")
	v.SetDefault("rate_limit.second_factor_max_attempts", 5)
	v.SetDefault("rate_limit.second_factor_window", "5m")
	v.SetDefault("rate_limit.api_key_max_requests", 60)
	v.SetDefault("rate_limit.api_key_window", "1m")

	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.lock_duration", "30m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHCORE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
