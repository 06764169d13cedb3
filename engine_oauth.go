package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/oauth2"
)

const refreshFlightKey = "refresh"

// tokenExpiry remembers the expiry announced for the current access token.
type tokenExpiry struct {
	mu     sync.Mutex
	access string
	expiry time.Time
}

func (t *tokenExpiry) set(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	t.mu.Lock()
	t.access = tok.AccessToken
	t.expiry = tok.Expiry
	t.mu.Unlock()
}

func (t *tokenExpiry) lookup(access string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.access != access {
		return time.Time{}
	}
	return t.expiry
}

// RegisterOAuthClient registers a new OAuth application named after domain and
// stores its client id/secret. The requested scopes are always read and write.
// An empty domain uses the host of Config.Client.BaseURL.
func (e *Engine) RegisterOAuthClient(ctx context.Context, domain string) (oauth.App, error) {
	if err := e.ready(); err != nil {
		return oauth.App{}, err
	}
	ctx = ensureCorrelationID(ctx)
	return e.registerOAuthClient(ctx, domain)
}

func (e *Engine) registerOAuthClient(ctx context.Context, domain string) (oauth.App, error) {
	log := e.log(ctx, "register_oauth_client")
	if domain == "" {
		domain = e.clientHost()
	}

	name := e.config.Client.AppName
	if name == "" {
		name = "goSession client at " + domain
	}

	start := time.Now()
	res := e.flows.RegisterClient(ctx, oauth.Registration{
		Name:        name,
		Website:     e.config.Client.BaseURL,
		RedirectURI: e.oauth.RedirectURI(),
		Scopes:      e.config.OAuth.Scopes,
	})
	e.observeExchange(start)

	if res.Failure != flows.OAuthFailureNone {
		err := e.oauthError(ExchangeOpRegister, res.Failure, res.Err)
		e.metricInc(MetricOAuthClientFailure)
		log.WithError(err).Warn("Error while registering oauth application")
		e.emitAudit(ctx, auditEventOAuthAppFailed, false, err, nil)
		return oauth.App{}, err
	}

	e.metricInc(MetricOAuthClientRegistered)
	log.WithField("client_id", res.App.ClientID).Info("Registered oauth application")
	e.emitAudit(ctx, auditEventOAuthAppRegistered, true, nil, func() map[string]string {
		return map[string]string{"client_id": res.App.ClientID}
	})
	return res.App, nil
}

// BeginOAuthAuthorization registers a client, builds the authorize URL carrying
// next as state, and hands it to Navigator.Redirect when one is configured. The
// flow resumes in [Engine.HandleOAuthCallback] once the instance redirects back.
func (e *Engine) BeginOAuthAuthorization(ctx context.Context, next string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	ctx = ensureCorrelationID(ctx)

	app, err := e.registerOAuthClient(ctx, "")
	if err != nil {
		return "", err
	}

	authorizeURL := e.oauth.AuthorizeURL(app, e.inAppPath(next))
	e.log(ctx, "oauth_authorize").Info("Redirecting user...")
	e.emitAudit(ctx, auditEventOAuthAuthorize, true, nil, nil)

	if e.navigator != nil {
		if err := e.navigator.Redirect(ctx, authorizeURL); err != nil {
			return authorizeURL, fmt.Errorf("redirect: %w", err)
		}
	}
	return authorizeURL, nil
}

// HandleOAuthCallback exchanges an authorization code for tokens, stores them
// and fetches the profile. The app registration is recovered from persisted
// state when this process did not start the flow. A failed profile fetch keeps
// the tokens and returns an error matching ErrProfileFetchFailed.
func (e *Engine) HandleOAuthCallback(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if code == "" {
		return errors.New("authorization code is empty")
	}
	ctx = ensureCorrelationID(ctx)
	log := e.log(ctx, "oauth_callback")
	log.Info("Fetching token...")

	start := time.Now()
	res := e.flows.OAuthCallback(ctx, code)
	e.observeExchange(start)

	if res.Failure != flows.OAuthFailureNone {
		err := e.oauthError(ExchangeOpCode, res.Failure, res.Err)
		e.metricInc(MetricCodeExchangeFailure)
		if res.Failure == flows.OAuthFailureStale {
			e.metricInc(MetricStaleDiscarded)
		}
		log.WithError(err).Warn("Error while exchanging authorization code")
		e.emitAudit(ctx, auditEventOAuthCodeFailed, false, err, nil)
		return err
	}

	e.expiry.set(res.Token)
	e.metricInc(MetricCodeExchangeSuccess)
	e.emitAudit(ctx, auditEventOAuthCodeExchanged, true, nil, nil)
	return profileError(res.Profile)
}

// CompleteOAuthLogin runs HandleOAuthCallback and then navigates to state, the
// path passed to BeginOAuthAuthorization. It requires a Navigator.
func (e *Engine) CompleteOAuthLogin(ctx context.Context, code, state string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.navigator == nil {
		return ErrNavigatorMissing
	}
	ctx = ensureCorrelationID(ctx)
	if err := e.HandleOAuthCallback(ctx, code); err != nil {
		return err
	}
	return e.navigate(ctx, state)
}

// RefreshOAuthToken exchanges the stored refresh token for a new pair.
// Concurrent callers share one exchange. A failed refresh leaves the store
// untouched; a response without refresh_token keeps the current one.
func (e *Engine) RefreshOAuthToken(ctx context.Context) error {
	_, err := e.refreshToken(ctx)
	return err
}

func (e *Engine) refreshToken(ctx context.Context) (*oauth2.Token, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx = ensureCorrelationID(ctx)

	// The exchange is shared, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	leader := false
	v, err, shared := e.refreshGroup.Do(refreshFlightKey, func() (any, error) {
		leader = true
		return e.runRefresh(flightCtx)
	})
	if shared && !leader {
		e.metricInc(MetricRefreshCoalesced)
	}
	if err != nil {
		return nil, err
	}
	tok := *v.(*oauth2.Token)
	return &tok, nil
}

func (e *Engine) runRefresh(ctx context.Context) (*oauth2.Token, error) {
	log := e.log(ctx, "refresh_token")

	start := time.Now()
	res := e.flows.Refresh(ctx)
	e.observeExchange(start)

	if res.Failure != flows.OAuthFailureNone {
		err := e.oauthError(ExchangeOpRefresh, res.Failure, res.Err)
		e.metricInc(MetricRefreshFailure)
		if res.Failure == flows.OAuthFailureStale {
			e.metricInc(MetricStaleDiscarded)
		}
		log.WithError(err).Warn("Error while refreshing oauth token")
		e.emitAudit(ctx, auditEventTokenRefreshFailed, false, err, nil)
		return nil, err
	}

	e.expiry.set(res.Token)
	e.metricInc(MetricRefreshSuccess)
	log.Debug("Refreshed oauth token")
	e.emitAudit(ctx, auditEventTokenRefreshed, true, nil, nil)
	return res.Token, nil
}

// TokenSource returns an [oauth2.TokenSource] serving the stored access token
// and refreshing through RefreshOAuthToken once it expires. Tokens restored
// from persistence carry no expiry and are served until a refresh is forced.
func (e *Engine) TokenSource(ctx context.Context) oauth2.TokenSource {
	var current *oauth2.Token
	if e != nil && e.state != nil {
		creds := e.state.OAuth()
		if e.state.Mode() == session.ModeOAuth && creds.AccessToken != "" {
			current = &oauth2.Token{
				AccessToken:  creds.AccessToken,
				RefreshToken: creds.RefreshToken,
				TokenType:    "Bearer",
				Expiry:       e.expiry.lookup(creds.AccessToken),
			}
		}
	}
	return oauth.NewTokenSource(ctx, current, e.refreshToken)
}

func (e *Engine) oauthError(op string, kind flows.OAuthFailureKind, err error) error {
	switch kind {
	case flows.OAuthFailureNotRegistered:
		return ErrClientNotRegistered
	case flows.OAuthFailureNoRefreshToken:
		return ErrNoRefreshToken
	case flows.OAuthFailureStale:
		return fmt.Errorf("%w: %v", ErrStaleResponse, err)
	default:
		return exchangeErrorFrom(op, err)
	}
}

func (e *Engine) clientHost() string {
	u, err := url.Parse(e.config.Client.BaseURL)
	if err != nil || u.Host == "" {
		return e.config.Client.BaseURL
	}
	return u.Host
}
