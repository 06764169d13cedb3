package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureTransport
	LoginFailureRejected
	LoginFailureStale
	LoginFailureProfile
)

// LoginResult carries the login outcome.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	Response *api.Response
	// Token is the legacy token, empty for cookie-backed sessions.
	Token   string
	Profile ProfileResult
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	API          InstanceAPI
	Path         string
	Store        CredentialStore
	FetchProfile func(ctx context.Context) ProfileResult
	Persist      func(ctx context.Context) error
	Warn         func(string, ...any)
}

// RunPasswordLogin posts credentials as a form. A rejected login leaves the
// store untouched. On success the optional legacy token is committed and the
// profile is fetched.
func RunPasswordLogin(ctx context.Context, credentials url.Values, deps LoginDeps) LoginResult {
	gen := deps.Store.Generation()

	resp, err := deps.API.PostForm(ctx, deps.Path, credentials)
	if err != nil {
		return LoginResult{Failure: LoginFailureTransport, Err: err}
	}
	if !resp.OK() {
		return LoginResult{
			Failure:  LoginFailureRejected,
			Err:      fmt.Errorf("login: unexpected status %d", resp.StatusCode),
			Response: resp,
		}
	}

	var body struct {
		Token string `json:"token"`
	}
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			warn(deps.Warn, "login response is not JSON, assuming cookie session: %v", err)
		}
	}

	if body.Token != "" {
		if err := deps.Store.CommitToken(gen, body.Token); err != nil {
			return LoginResult{Failure: LoginFailureStale, Err: err, Response: resp}
		}
		if deps.Persist != nil {
			if err := deps.Persist(ctx); err != nil {
				warn(deps.Warn, "persist credentials: %v", err)
			}
		}
	}

	profile := deps.FetchProfile(ctx)
	res := LoginResult{Response: resp, Token: body.Token, Profile: profile}
	if profile.Failure != ProfileFailureNone {
		res.Failure = LoginFailureProfile
		res.Err = profile.Err
		if errors.Is(profile.Err, session.ErrStaleGeneration) {
			res.Failure = LoginFailureStale
		}
	}
	return res
}
