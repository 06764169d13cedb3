package oauth

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/MrEthical07/goSession/internal/fakeinstance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newClient(t *testing.T) (*Client, *fakeinstance.Server) {
	t.Helper()
	srv := fakeinstance.New()
	t.Cleanup(srv.Close)

	c := NewClient(Endpoints{
		Apps:      srv.URL + "/api/v1/oauth/apps/",
		Authorize: srv.URL + "/authorize",
		Token:     srv.URL + "/api/v1/oauth/token/",
	}, "http://client.example/auth/callback", nil, srv.Client())
	return c, srv
}

func TestRegisterAppSendsFixedScopes(t *testing.T) {
	c, srv := newClient(t)

	app, err := c.RegisterApp(context.Background(), Registration{
		Name:    "Web client at client.example",
		Website: "http://client.example",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, app.ClientID)
	assert.NotEmpty(t, app.ClientSecret)

	form := srv.LastForm("/api/v1/oauth/apps/")
	assert.Equal(t, "read write", form.Get("scopes"))
	assert.Equal(t, "http://client.example/auth/callback", form.Get("redirect_uris"))
	assert.Equal(t, "http://client.example", form.Get("website"))
}

func TestRegisterAppFailureCarriesResponse(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.RegisterApp(context.Background(), Registration{})
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, OpRegister, respErr.Op)
	assert.Equal(t, 400, respErr.StatusCode)
	assert.Contains(t, string(respErr.Body), "invalid payload")
}

func TestAuthorizeURL(t *testing.T) {
	c, srv := newClient(t)

	raw := c.AuthorizeURL(App{ClientID: "cid"}, "/library")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "read write", q.Get("scope"))
	assert.Equal(t, "http://client.example/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "/library", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
}

func TestExchangeCodeAndRefresh(t *testing.T) {
	c, srv := newClient(t)
	srv.AddUser("alice", "pw", nil)
	ctx := context.Background()

	app, err := c.RegisterApp(ctx, Registration{Name: "n", Website: "w"})
	require.NoError(t, err)

	code := srv.IssueCode(app.ClientID, "alice")
	tok, err := c.ExchangeCode(ctx, app, code)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.False(t, tok.Expiry.IsZero())
	assert.Equal(t, "read write", tok.Extra("scope"))

	form := srv.LastForm("/api/v1/oauth/token/")
	assert.Equal(t, GrantAuthorizationCode, form.Get("grant_type"))
	assert.Equal(t, code, form.Get("code"))
	assert.Equal(t, app.ClientSecret, form.Get("client_secret"))
	assert.Equal(t, "http://client.example/auth/callback", form.Get("redirect_uri"))

	next, err := c.Refresh(ctx, app, tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.AccessToken, next.AccessToken)
	form = srv.LastForm("/api/v1/oauth/token/")
	assert.Equal(t, GrantRefreshToken, form.Get("grant_type"))
	assert.Equal(t, tok.RefreshToken, form.Get("refresh_token"))
	assert.Empty(t, form.Get("code"))
}

func TestExchangeCodeRejected(t *testing.T) {
	c, srv := newClient(t)
	app, err := c.RegisterApp(context.Background(), Registration{Name: "n", Website: "w"})
	require.NoError(t, err)
	srv.SetRejectTokenGrant(true)

	_, err = c.ExchangeCode(context.Background(), app, "whatever")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, OpCode, respErr.Op)
	assert.Equal(t, 400, respErr.StatusCode)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, string(respErr.Body))
}

func TestExchangePreconditions(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.ExchangeCode(ctx, App{}, "code")
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = c.Refresh(ctx, App{ClientID: "c", ClientSecret: "s"}, "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestTokenSourceRefreshesOnlyWhenInvalid(t *testing.T) {
	calls := 0
	refresh := func(context.Context) (*oauth2.Token, error) {
		calls++
		return &oauth2.Token{AccessToken: "fresh"}, nil
	}

	valid := NewTokenSource(context.Background(), &oauth2.Token{AccessToken: "current"}, refresh)
	tok, err := valid.Token()
	require.NoError(t, err)
	assert.Equal(t, "current", tok.AccessToken)
	assert.Equal(t, 0, calls)

	empty := NewTokenSource(context.Background(), nil, refresh)
	tok, err = empty.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, calls)
}
