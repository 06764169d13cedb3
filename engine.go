package goSession

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Engine defines a public type used by goSession APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	registry     *permission.Registry
	state        *session.State
	store        *session.Store
	api          *api.Client
	oauth        *oauth.Client
	flows        flows.Service
	bus          *resetBus
	navigator    Navigator
	dispatcher   Dispatcher
	audit        *auditDispatcher
	metrics      *Metrics
	logger       logrus.FieldLogger
	refreshGroup singleflight.Group
	expiry       tokenExpiry
	now          func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// State returns the credential store. Mutations made through it bypass
// persistence, audit and the reset broadcast.
func (e *Engine) State() *session.State {
	if e == nil {
		return nil
	}
	return e.state
}

// Snapshot returns a consistent copy of the credential store.
func (e *Engine) Snapshot() Snapshot {
	if e == nil || e.state == nil {
		return Snapshot{}
	}
	return e.state.Snapshot()
}

// Authenticated reports whether a profile has been applied since the last
// de-authentication.
func (e *Engine) Authenticated() bool {
	return e != nil && e.state != nil && e.state.Authenticated()
}

// HasPermission reports whether the server granted key to the current user.
func (e *Engine) HasPermission(key string) bool {
	return e != nil && e.state != nil && e.state.HasPermission(key)
}

// AuthorizationHeaderValue returns the Authorization header for the active
// credential, or ok=false for anonymous requests.
func (e *Engine) AuthorizationHeaderValue() (string, bool) {
	if e == nil || e.state == nil {
		return "", false
	}
	return e.state.AuthorizationHeaderValue()
}

// HTTPClient returns a client that attaches the derived Authorization header
// and shares the session cookie jar. Use it for every other instance request.
func (e *Engine) HTTPClient() *http.Client {
	if e == nil || e.api == nil {
		return nil
	}
	return e.api.HTTPClient()
}

// ResetSubscribers returns subscriber names in broadcast order.
func (e *Engine) ResetSubscribers() []string {
	if e == nil || e.bus == nil {
		return nil
	}
	return e.bus.names()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeExchange(start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricExchangeLatency, time.Since(start))
}

func (e *Engine) log(ctx context.Context, op string) *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"correlation_id": correlationIDFromContext(ctx),
		"op":             op,
	})
}

func (e *Engine) flowDeps() flows.Deps {
	warn := func(format string, args ...any) {
		e.logger.Warnf(format, args...)
	}
	fetchProfile := func(ctx context.Context) flows.ProfileResult {
		return e.fetchProfile(ctx)
	}

	var restore, persist, clear func(context.Context) error
	if e.store != nil {
		restore = e.restoreCredentials
		persist = e.persist
		clear = e.clearPersisted
	}

	var dispatch func(context.Context, string) error
	if e.dispatcher != nil {
		dispatch = func(ctx context.Context, name string) error {
			return e.dispatcher.Dispatch(ctx, Action(name))
		}
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			API:          e.api,
			Path:         e.config.Endpoints.Login,
			Store:        e.state,
			FetchProfile: fetchProfile,
			Persist:      persist,
			Warn:         warn,
		},
		Profile: flows.ProfileDeps{
			API:      e.api,
			Path:     e.config.Endpoints.Profile,
			Store:    e.state,
			Dispatch: dispatch,
			Warn:     warn,
		},
		Check: flows.CheckDeps{
			Store:        e.state,
			Restore:      restore,
			FetchProfile: fetchProfile,
		},
		Logout: flows.LogoutDeps{
			API:            e.api,
			Path:           e.config.Endpoints.Logout,
			Publish:        e.publishReset,
			ClearPersisted: clear,
			Navigate: func(ctx context.Context) error {
				if e.navigator == nil {
					return nil
				}
				return e.navigator.Navigate(ctx, e.config.Client.HomePath)
			},
		},
		Register: flows.RegisterDeps{
			Client:  e.oauth,
			Store:   e.state,
			Persist: persist,
			Warn:    warn,
		},
		Callback: flows.CallbackDeps{
			Client:       e.oauth,
			Store:        e.state,
			Restore:      restore,
			Persist:      persist,
			FetchProfile: fetchProfile,
			Warn:         warn,
		},
		Refresh: flows.RefreshDeps{
			Client:  e.oauth,
			Store:   e.state,
			Restore: restore,
			Persist: persist,
			Warn:    warn,
		},
	}
}

func (e *Engine) publishReset(ctx context.Context) []string {
	names := e.bus.publish()
	e.metricInc(MetricSessionReset)
	e.emitAudit(ctx, auditEventSessionReset, true, nil, func() map[string]string {
		return map[string]string{"subscribers": fmt.Sprint(len(names))}
	})
	return names
}
