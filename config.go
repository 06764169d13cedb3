package goSession

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Server      ServerConfig      `envPrefix:"SERVER_" yaml:"server"`
	Client      ClientConfig      `envPrefix:"CLIENT_" yaml:"client"`
	OAuth       OAuthConfig       `envPrefix:"OAUTH_" yaml:"oauth"`
	Endpoints   EndpointsConfig   `envPrefix:"ENDPOINTS_" yaml:"endpoints"`
	Persistence PersistenceConfig `envPrefix:"PERSISTENCE_" yaml:"persistence"`
	HTTP        HTTPConfig        `envPrefix:"HTTP_" yaml:"http"`
	Audit       AuditConfig       `envPrefix:"AUDIT_" yaml:"audit"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_" yaml:"metrics"`
	Logging     LoggingConfig     `envPrefix:"LOG_" yaml:"logging"`
	Tracing     TracingConfig     `envPrefix:"TRACING_" yaml:"tracing"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig locates the instance. InstanceURL is the instance root; the
// authorize page hangs off it. APIPath is resolved against InstanceURL and
// every API endpoint against the result.
type ServerConfig struct {
	InstanceURL string `env:"INSTANCE_URL" yaml:"instance_url"`
	APIPath     string `env:"API_PATH" yaml:"api_path"`
}

/*
====================================
CLIENT CONFIG
====================================
*/

// ClientConfig describes this client as seen by the instance.
type ClientConfig struct {
	// BaseURL is where this client is served; the OAuth redirect URI is
	// BaseURL + CallbackPath.
	BaseURL      string `env:"BASE_URL" yaml:"base_url"`
	CallbackPath string `env:"CALLBACK_PATH" yaml:"callback_path"`
	HomePath     string `env:"HOME_PATH" yaml:"home_path"`
	// AppName overrides the registered OAuth application name.
	AppName   string `env:"APP_NAME" yaml:"app_name"`
	UserAgent string `env:"USER_AGENT" yaml:"user_agent"`
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig defines a public type used by goSession APIs.
type OAuthConfig struct {
	Scopes []string `env:"SCOPES" envSeparator:" " yaml:"scopes"`
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig holds paths relative to the API base, except Authorize which
// is relative to the instance root.
type EndpointsConfig struct {
	Login     string `env:"LOGIN" yaml:"login"`
	Logout    string `env:"LOGOUT" yaml:"logout"`
	Profile   string `env:"PROFILE" yaml:"profile"`
	Apps      string `env:"APPS" yaml:"apps"`
	Token     string `env:"TOKEN" yaml:"token"`
	Authorize string `env:"AUTHORIZE" yaml:"authorize"`
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig controls the Redis credential record. It is only used when
// a Redis client is supplied to the builder.
type PersistenceConfig struct {
	Enabled     bool          `env:"ENABLED" yaml:"enabled"`
	RedisAddr   string        `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPrefix string        `env:"REDIS_PREFIX" yaml:"redis_prefix"`
	Namespace   string        `env:"NAMESPACE" yaml:"namespace"`
	TTL         time.Duration `env:"TTL" yaml:"ttl"`
	// LegacyTokenLeeway is the grace period past a legacy token's expiry
	// during which a restored token is still used.
	LegacyTokenLeeway time.Duration `env:"LEGACY_TOKEN_LEEWAY" yaml:"legacy_token_leeway"`
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig defines a public type used by goSession APIs.
type HTTPConfig struct {
	Timeout   time.Duration `env:"TIMEOUT" yaml:"timeout"`
	CookieJar bool          `env:"COOKIE_JAR" yaml:"cookie_jar"`
}

// AuditConfig defines a public type used by goSession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED" yaml:"enabled"`
	BufferSize int  `env:"BUFFER_SIZE" yaml:"buffer_size"`
	DropIfFull bool `env:"DROP_IF_FULL" yaml:"drop_if_full"`
}

// MetricsConfig defines a public type used by goSession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED" yaml:"enabled"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS" yaml:"latency_histograms"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig selects the level and format of the default logger. It is
// ignored when a logger is supplied through [Builder.WithLogger].
type LoggingConfig struct {
	Level string `env:"LEVEL" yaml:"level"`
	JSON  bool   `env:"JSON" yaml:"json"`
}

// TracingConfig enables otelhttp instrumentation of outgoing requests.
type TracingConfig struct {
	Enabled bool `env:"ENABLED" yaml:"enabled"`
}

// DefaultConfig returns the configuration used when none is supplied. The
// instance URL is left empty and must be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			APIPath: "api/v1/",
		},
		Client: ClientConfig{
			BaseURL:      "http://localhost:8080",
			CallbackPath: "/auth/callback",
			HomePath:     "/",
			UserAgent:    "goSession",
		},
		OAuth: OAuthConfig{
			Scopes: []string{"read", "write"},
		},
		Endpoints: EndpointsConfig{
			Login:     "users/login",
			Logout:    "users/logout",
			Profile:   "users/users/me/",
			Apps:      "oauth/apps/",
			Token:     "oauth/token/",
			Authorize: "authorize",
		},
		Persistence: PersistenceConfig{
			Enabled:           true,
			RedisPrefix:       "gs",
			Namespace:         "default",
			TTL:               30 * 24 * time.Hour,
			LegacyTokenLeeway: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			CookieJar: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 128,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.OAuth.Scopes = append([]string(nil), cfg.OAuth.Scopes...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Server
	if c.Server.InstanceURL == "" {
		return errors.New("Server InstanceURL must be set")
	}
	if err := validateAbsoluteURL(c.Server.InstanceURL); err != nil {
		return errors.New("Server InstanceURL " + err.Error())
	}
	if strings.HasPrefix(c.Server.APIPath, "/") {
		return errors.New("Server APIPath must be relative")
	}

	// Client
	if err := validateAbsoluteURL(c.Client.BaseURL); err != nil {
		return errors.New("Client BaseURL " + err.Error())
	}
	if !strings.HasPrefix(c.Client.CallbackPath, "/") {
		return errors.New("Client CallbackPath must start with /")
	}
	if !strings.HasPrefix(c.Client.HomePath, "/") {
		return errors.New("Client HomePath must start with /")
	}

	// OAuth
	if !containsScope(c.OAuth.Scopes, "read") || !containsScope(c.OAuth.Scopes, "write") {
		return errors.New("OAuth Scopes must include read and write")
	}

	// Endpoints
	for _, ep := range [...]struct{ name, path string }{
		{"Login", c.Endpoints.Login},
		{"Logout", c.Endpoints.Logout},
		{"Profile", c.Endpoints.Profile},
		{"Apps", c.Endpoints.Apps},
		{"Token", c.Endpoints.Token},
		{"Authorize", c.Endpoints.Authorize},
	} {
		if ep.path == "" {
			return errors.New("Endpoints " + ep.name + " must be set")
		}
	}

	// Persistence
	if c.Persistence.Enabled {
		if c.Persistence.RedisPrefix == "" {
			return errors.New("Persistence RedisPrefix must be set when enabled")
		}
		if c.Persistence.TTL < 0 {
			return errors.New("Persistence TTL must be >= 0")
		}
		if c.Persistence.LegacyTokenLeeway < 0 {
			return errors.New("Persistence LegacyTokenLeeway must be >= 0")
		}
	}

	// HTTP
	if c.HTTP.Timeout <= 0 {
		return errors.New("HTTP Timeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return errors.New("Logging Level is invalid")
	}

	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
