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
	Session   SessionSettings   `mapstructure:"session"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Digest    DigestSettings    `mapstructure:"digest"`
	Providers ProviderSettings  `mapstructure:"providers"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
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

// RedisSettings configures the Redis connection.
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	SessionPrefix string `mapstructure:"session_prefix"`
	AttemptPrefix string `mapstructure:"attempt_prefix"`
}

// KafkaSettings configures the Kafka producer. Empty brokers select the stub
// publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SessionSettings governs session issuance and storage.
type SessionSettings struct {
	// Store selects the backend: "redis" or "postgres".
	Store      string        `mapstructure:"store"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Rolling    bool          `mapstructure:"rolling"`
	// Retention keeps expired records readable so expiry stays
	// distinguishable from absence.
	Retention time.Duration `mapstructure:"retention"`
	// ReclaimInterval drives the PostgreSQL purge ticker. Ignored for Redis.
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval"`
}

// LockoutSettings bounds consecutive failed credential verifications.
type LockoutSettings struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	WindowDuration time.Duration `mapstructure:"window_duration"`
}

// DigestSettings enables HTTP Digest authentication. An empty realm disables
// the scheme.
type DigestSettings struct {
	Realm string `mapstructure:"realm"`
}

// ProviderSettings carries the per-provider OAuth credentials and endpoints.
type ProviderSettings struct {
	ExchangeTimeout time.Duration             `mapstructure:"exchange_timeout"`
	Twitter         ProviderCredentials       `mapstructure:"twitter"`
	Facebook        ProviderCredentials       `mapstructure:"facebook"`
	GitHub          ProviderCredentials       `mapstructure:"github"`
	Google          ProviderCredentials       `mapstructure:"google"`
	Yandex          ProviderCredentials       `mapstructure:"yandex"`
	VK              ProviderCredentials       `mapstructure:"vk"`
}

// ProviderCredentials configures one external provider. Endpoint URLs default
// to the provider's public API and are overridable for tests and proxies.
type ProviderCredentials struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	ProfileURL   string `mapstructure:"profile_url"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// RateLimitSettings configures transport-level sliding windows per endpoint.
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHGW")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
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
		"redis.session_prefix",
		"redis.attempt_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"session.store",
		"session.default_ttl",
		"session.rolling",
		"session.retention",
		"session.reclaim_interval",
		"lockout.max_attempts",
		"lockout.window_duration",
		"digest.realm",
		"providers.exchange_timeout",
		"providers.twitter.enabled",
		"providers.twitter.client_id",
		"providers.twitter.client_secret",
		"providers.twitter.token_url",
		"providers.twitter.profile_url",
		"providers.twitter.redirect_uri",
		"providers.facebook.enabled",
		"providers.facebook.client_id",
		"providers.facebook.client_secret",
		"providers.facebook.token_url",
		"providers.facebook.profile_url",
		"providers.facebook.redirect_uri",
		"providers.github.enabled",
		"providers.github.client_id",
		"providers.github.client_secret",
		"providers.github.token_url",
		"providers.github.profile_url",
		"providers.github.redirect_uri",
		"providers.google.enabled",
		"providers.google.client_id",
		"providers.google.client_secret",
		"providers.google.token_url",
		"providers.google.profile_url",
		"providers.google.redirect_uri",
		"providers.yandex.enabled",
		"providers.yandex.client_id",
		"providers.yandex.client_secret",
		"providers.yandex.token_url",
		"providers.yandex.profile_url",
		"providers.yandex.redirect_uri",
		"providers.vk.enabled",
		"providers.vk.client_id",
		"providers.vk.client_secret",
		"providers.vk.token_url",
		"providers.vk.profile_url",
		"providers.vk.redirect_uri",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
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
	v.SetDefault("app.name", "auth-gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
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
	v.SetDefault("redis.session_prefix", "authgw:session")
	v.SetDefault("redis.attempt_prefix", "authgw:login_attempts")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "authgw")
	v.SetDefault("kafka.async", true)

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.default_ttl", "24h")
	v.SetDefault("session.rolling", true)
	v.SetDefault("session.retention", "24h")
	v.SetDefault("session.reclaim_interval", "10m")

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.window_duration", "15m")

	v.SetDefault("digest.realm", "")

	v.SetDefault("providers.exchange_timeout", "10s")
	v.SetDefault("providers.twitter.token_url", "https://api.twitter.com/2/oauth2/token")
	v.SetDefault("providers.twitter.profile_url", "https://api.twitter.com/2/users/me")
	v.SetDefault("providers.facebook.token_url", "https://graph.facebook.com/v18.0/oauth/access_token")
	v.SetDefault("providers.facebook.profile_url", "https://graph.facebook.com/me?fields=id,name,email")
	v.SetDefault("providers.github.token_url", "https://github.com/login/oauth/access_token")
	v.SetDefault("providers.github.profile_url", "https://api.github.com/user")
	v.SetDefault("providers.google.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("providers.google.profile_url", "https://openidconnect.googleapis.com/v1/userinfo")
	v.SetDefault("providers.yandex.token_url", "https://oauth.yandex.ru/token")
	v.SetDefault("providers.yandex.profile_url", "https://login.yandex.ru/info?format=json")
	v.SetDefault("providers.vk.token_url", "https://oauth.vk.com/access_token")
	v.SetDefault("providers.vk.profile_url", "https://api.vk.com/method/users.get?fields=screen_name&v=5.131")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "auth-gateway")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHGW_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
