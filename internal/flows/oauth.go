package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/oauth2"
)

// OAuthFailureKind classifies OAuth flow failures for root-level mapping.
type OAuthFailureKind int

const (
	OAuthFailureNone OAuthFailureKind = iota
	OAuthFailureNotRegistered
	OAuthFailureNoRefreshToken
	OAuthFailureExchange
	OAuthFailureStale
)

// RegisterResult carries a new app registration.
type RegisterResult struct {
	Failure OAuthFailureKind
	Err     error
	App     oauth.App
}

// RegisterDeps captures app registration dependencies.
type RegisterDeps struct {
	Client       OAuthClient
	Registration oauth.Registration
	Store        CredentialStore
	Persist      func(ctx context.Context) error
	Warn         func(string, ...any)
}

// RunRegisterClient registers a new app and stores its client id/secret. The
// registration is persisted so the callback can recover it after the redirect.
func RunRegisterClient(ctx context.Context, deps RegisterDeps) RegisterResult {
	gen := deps.Store.Generation()

	app, err := deps.Client.RegisterApp(ctx, deps.Registration)
	if err != nil {
		return RegisterResult{Failure: OAuthFailureExchange, Err: err}
	}
	if err := deps.Store.CommitOAuthApp(gen, app.ClientID, app.ClientSecret); err != nil {
		return RegisterResult{Failure: OAuthFailureStale, Err: err}
	}
	if deps.Persist != nil {
		if err := deps.Persist(ctx); err != nil {
			warn(deps.Warn, "persist oauth app: %v", err)
		}
	}
	return RegisterResult{App: app}
}

// CallbackResult carries the outcome of a code exchange.
type CallbackResult struct {
	Failure OAuthFailureKind
	Err     error
	Token   *oauth2.Token
	// Profile is only meaningful when the exchange succeeded. A failed profile
	// fetch does not undo the exchange.
	Profile ProfileResult
}

// CallbackDeps captures authorization-code callback dependencies.
type CallbackDeps struct {
	Client       OAuthClient
	Store        CredentialStore
	Restore      func(ctx context.Context) error
	Persist      func(ctx context.Context) error
	FetchProfile func(ctx context.Context) ProfileResult
	Warn         func(string, ...any)
}

// RunOAuthCallback exchanges code for a token pair, stores it and fetches the
// profile. The app registration is re-derived from persisted state when the
// in-memory store does not hold one.
func RunOAuthCallback(ctx context.Context, code string, deps CallbackDeps) CallbackResult {
	app, ok := registeredApp(ctx, deps.Store, deps.Restore, deps.Warn)
	if !ok {
		return CallbackResult{Failure: OAuthFailureNotRegistered, Err: oauth.ErrNotRegistered}
	}

	gen := deps.Store.Generation()
	tok, err := deps.Client.ExchangeCode(ctx, app, code)
	if err != nil {
		return CallbackResult{Failure: OAuthFailureExchange, Err: err}
	}
	if err := deps.Store.CommitOAuthToken(gen, tok.AccessToken, tok.RefreshToken); err != nil {
		return CallbackResult{Failure: OAuthFailureStale, Err: err}
	}
	if deps.Persist != nil {
		if err := deps.Persist(ctx); err != nil {
			warn(deps.Warn, "persist oauth token: %v", err)
		}
	}

	return CallbackResult{Token: tok, Profile: deps.FetchProfile(ctx)}
}

// RefreshResult carries the outcome of a refresh exchange.
type RefreshResult struct {
	Failure OAuthFailureKind
	Err     error
	Token   *oauth2.Token
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Client  OAuthClient
	Store   CredentialStore
	Restore func(ctx context.Context) error
	Persist func(ctx context.Context) error
	Warn    func(string, ...any)
}

// RunRefresh exchanges the stored refresh token for a new pair. The store is
// only touched when the exchange succeeds and no reset happened meanwhile. A
// response without refresh_token keeps the current refresh token.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	app, ok := registeredApp(ctx, deps.Store, deps.Restore, deps.Warn)
	if !ok {
		return RefreshResult{Failure: OAuthFailureNotRegistered, Err: oauth.ErrNotRegistered}
	}

	creds := deps.Store.OAuth()
	if creds.RefreshToken == "" {
		return RefreshResult{Failure: OAuthFailureNoRefreshToken, Err: oauth.ErrNoRefreshToken}
	}

	gen := deps.Store.Generation()
	tok, err := deps.Client.Refresh(ctx, app, creds.RefreshToken)
	if err != nil {
		kind := OAuthFailureExchange
		if errors.Is(err, oauth.ErrNoRefreshToken) {
			kind = OAuthFailureNoRefreshToken
		}
		return RefreshResult{Failure: kind, Err: err}
	}
	if err := deps.Store.CommitOAuthToken(gen, tok.AccessToken, tok.RefreshToken); err != nil {
		return RefreshResult{Failure: OAuthFailureStale, Err: err}
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = creds.RefreshToken
	}
	if deps.Persist != nil {
		if err := deps.Persist(ctx); err != nil {
			warn(deps.Warn, "persist refreshed token: %v", err)
		}
	}
	return RefreshResult{Token: tok}
}

func registeredApp(ctx context.Context, store CredentialStore, restore func(context.Context) error, warnFn func(string, ...any)) (oauth.App, bool) {
	creds := store.OAuth()
	if !creds.Registered() && restore != nil {
		if err := restore(ctx); err != nil && !errors.Is(err, session.ErrCredentialsNotFound) {
			warn(warnFn, "restore credentials: %v", err)
		}
		creds = store.OAuth()
	}
	if !creds.Registered() {
		return oauth.App{}, false
	}
	return oauth.App{ClientID: creds.ClientID, ClientSecret: creds.ClientSecret}, true
}
