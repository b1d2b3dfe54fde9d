// Package config provides configuration management for lifeboard services
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway service
type Config struct {
	// Service identification
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`

	// Redis backing store for rate limits and handoffs. When empty the
	// gateway falls back to process-local in-memory stores.
	RedisURL string `mapstructure:"redis_url"`

	// Bearer-token validation secret for the auth collaborator
	JWTSecret string `mapstructure:"jwt_secret"`

	// Frontend redirect target for OAuth callback results
	FrontendURL       string `mapstructure:"frontend_url"`
	OAuthRedirectPath string `mapstructure:"oauth_redirect_path"`

	// Outbound proxy settings
	Proxy ProxyConfig `mapstructure:"proxy"`

	// Rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Trace export
	Tracing TracingConfig `mapstructure:"tracing"`

	// OAuth provider credentials, keyed by provider name
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProxyConfig holds outbound proxy gateway configuration
type ProxyConfig struct {
	// AllowedHosts is the upstream hostname allow-list. An empty list
	// accepts any http(s) host (open mode, development only).
	AllowedHosts []string `mapstructure:"allowed_hosts"`

	// RequireAuth gates the proxy behind bearer-token authentication.
	// Disabling it is the designated anonymous mode.
	RequireAuth bool `mapstructure:"require_auth"`

	// ForwardTimeout bounds the upstream call wall-clock time
	ForwardTimeout time.Duration `mapstructure:"forward_timeout"`

	// RelayCookies permits Set-Cookie headers in relayed responses
	RelayCookies bool `mapstructure:"relay_cookies"`
}

// RateLimitConfig holds fixed-window rate limiting configuration
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// TracingConfig holds OTLP trace export settings
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ProviderConfig holds one OAuth provider's credentials. A provider is
// configured iff client_id and redirect_uri are present; token calls
// additionally require client_secret.
type ProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// Load reads configuration from file and environment variables
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/lifeboard")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LIFEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.ServiceName = serviceName

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8090)

	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("oauth_redirect_path", "/settings/integrations")

	v.SetDefault("proxy.allowed_hosts", []string{})
	v.SetDefault("proxy.require_auth", true)
	v.SetDefault("proxy.forward_timeout", 30*time.Second)
	v.SetDefault("proxy.relay_cookies", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

func bindEnvVars(v *viper.Viper) {
	// Common environment variable mappings
	envMappings := map[string]string{
		"environment":             "APP_ENV",
		"log_level":               "LOG_LEVEL",
		"port":                    "PORT",
		"redis_url":               "REDIS_URL",
		"jwt_secret":              "JWT_SECRET",
		"frontend_url":            "FRONTEND_URL",
		"oauth_redirect_path":     "OAUTH_REDIRECT_PATH",
		"proxy.allowed_hosts":     "PROXY_ALLOWED_HOSTS",
		"proxy.require_auth":      "PROXY_REQUIRE_AUTH",
		"proxy.forward_timeout":   "PROXY_FORWARD_TIMEOUT",
		"proxy.relay_cookies":     "PROXY_RELAY_COOKIES",
		"rate_limit.enabled":      "RATE_LIMIT_ENABLED",
		"rate_limit.max_requests": "RATE_LIMIT_MAX_REQUESTS",
		"rate_limit.window":       "RATE_LIMIT_WINDOW",
		"tracing.enabled":         "TRACING_ENABLED",
		"tracing.endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
		"tracing.sample_rate":     "TRACING_SAMPLE_RATE",
	}

	for key, env := range envMappings {
		v.BindEnv(key, env)
	}
}

func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.Proxy.ForwardTimeout <= 0 {
		return fmt.Errorf("proxy.forward_timeout must be positive")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
