package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Builder defines a public type used by goSession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	httpClient  *http.Client
	navigator   Navigator
	dispatcher  Dispatcher
	auditSink   AuditSink
	logger      logrus.FieldLogger
	permissions []string
	subscribers []resetSubscriber

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables credential persistence on client when
// Config.Persistence.Enabled is true.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for every instance request. Its Jar and
// Timeout are kept; its transport is wrapped.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithNavigator describes the withnavigator operation and its observable behavior.
//
// WithNavigator may return an error when input validation, dependency calls, or security checks fail.
// WithNavigator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithDispatcher sets the receiver of profile-triggered dependent fetches.
func (b *Builder) WithDispatcher(d Dispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger replaces the logger built from Config.Logging.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithPermissions adds keys to the default-false skeleton restored on reset.
func (b *Builder) WithPermissions(keys ...string) *Builder {
	b.permissions = append(b.permissions, keys...)
	return b
}

// WithResetSubscriber registers a container reset after the credential store
// whenever the session ends. Subscribers are reset in registration order. The
// name "auth" is reserved.
func (b *Builder) WithResetSubscriber(name string, r Resettable) *Builder {
	b.subscribers = append(b.subscribers, resetSubscriber{name: name, target: r})
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- PERMISSION SKELETON --------
	registry := permission.DefaultRegistry()
	if len(b.permissions) > 0 {
		registry = permission.NewRegistry()
		for _, key := range append(permission.DefaultRegistry().Keys(), b.permissions...) {
			if registry.Known(key) {
				continue
			}
			if _, err := registry.Register(key); err != nil {
				return nil, err
			}
		}
		registry.Freeze()
	}

	state := session.NewState(registry)

	// -------- TRANSPORT --------
	httpClient, jar, err := b.buildHTTPClient(cfg, state)
	if err != nil {
		return nil, err
	}

	// The session cookie belongs to the credential store: a reset must not
	// leave it behind for the next check.
	authReset := ResettableFunc(func() {
		state.Reset()
		if jar != nil {
			jar.Reset()
		}
	})
	bus, err := newResetBus(authReset, b.subscribers)
	if err != nil {
		return nil, err
	}

	apiBase, err := resolveAPIBase(cfg.Server)
	if err != nil {
		return nil, err
	}
	apiClient, err := api.New(apiBase, httpClient, cfg.Client.UserAgent)
	if err != nil {
		return nil, err
	}

	// The token endpoint must not see a stale bearer header.
	exchangeClient := &http.Client{
		Transport: bareTransport(httpClient.Transport),
		Jar:       httpClient.Jar,
		Timeout:   httpClient.Timeout,
	}
	oauthClient := oauth.NewClient(oauth.Endpoints{
		Apps:      apiClient.Resolve(cfg.Endpoints.Apps),
		Authorize: strings.TrimSuffix(cfg.Server.InstanceURL, "/") + "/" + strings.TrimPrefix(cfg.Endpoints.Authorize, "/"),
		Token:     apiClient.Resolve(cfg.Endpoints.Token),
	}, redirectURI(cfg.Client), cfg.OAuth.Scopes, exchangeClient)

	// -------- PERSISTENCE --------
	var store *session.Store
	if cfg.Persistence.Enabled && b.redis != nil {
		store = session.NewStore(b.redis, cfg.Persistence.RedisPrefix, cfg.Persistence.TTL)
	}

	logger := b.logger
	if logger == nil {
		logger = newLogger(cfg.Logging)
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		registry:   registry,
		state:      state,
		store:      store,
		api:        apiClient,
		oauth:      oauthClient,
		bus:        bus,
		navigator:  b.navigator,
		dispatcher: b.dispatcher,
		logger:     logger,
		now:        time.Now,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}

// buildHTTPClient returns the instance client and, when the engine created
// it, the cookie jar.
func (b *Builder) buildHTTPClient(cfg Config, state *session.State) (*http.Client, *api.Jar, error) {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	if b.httpClient != nil {
		copied := *b.httpClient
		client = &copied
		if client.Timeout == 0 {
			client.Timeout = cfg.HTTP.Timeout
		}
	}

	var jar *api.Jar
	if client.Jar == nil && cfg.HTTP.CookieJar {
		var err error
		jar, err = api.NewJar()
		if err != nil {
			return nil, nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.Jar = jar
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Tracing.Enabled {
		base = otelhttp.NewTransport(base)
	}
	client.Transport = &api.HeaderTransport{
		Base:   base,
		Source: state.AuthorizationHeaderValue,
	}
	return client, jar, nil
}

func bareTransport(rt http.RoundTripper) http.RoundTripper {
	if ht, ok := rt.(*api.HeaderTransport); ok {
		return ht.Base
	}
	return rt
}

func resolveAPIBase(cfg ServerConfig) (string, error) {
	root := cfg.InstanceURL
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	base, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("parse instance url: %w", err)
	}
	ref, err := url.Parse(cfg.APIPath)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func redirectURI(cfg ClientConfig) string {
	return strings.TrimSuffix(cfg.BaseURL, "/") + cfg.CallbackPath
}

func newLogger(cfg LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
