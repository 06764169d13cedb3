package middleware

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeinstance"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilePath = "/api/v1/users/users/me/"

func newEngine(t *testing.T, srv *fakeinstance.Server) *goSession.Engine {
	t.Helper()

	cfg := goSession.DefaultConfig()
	cfg.Server.InstanceURL = srv.InstanceURL()
	cfg.Client.BaseURL = "http://client.test"

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	engine, err := goSession.New().WithConfig(cfg).WithLogger(logger).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

// oauthLogin completes an authorization code flow against the engine instance.
func oauthLogin(t *testing.T, engine *goSession.Engine) {
	t.Helper()

	authorizeURL, err := engine.BeginOAuthAuthorization(context.Background(), "/")
	require.NoError(t, err)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(authorizeURL)
	require.NoError(t, err)
	resp.Body.Close()

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.NoError(t, engine.HandleOAuthCallback(context.Background(), loc.Query().Get("code")))
}

func TestAuthorizeAttachesDerivedHeader(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("carol", "pw", nil)
	engine := newEngine(t, srv)
	oauthLogin(t, engine)

	client := &http.Client{Transport: Authorize(engine, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	want, _ := engine.AuthorizationHeaderValue()
	assert.Equal(t, want, srv.LastAuthorization(profilePath))
}

func TestAuthorizeKeepsExplicitHeader(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("carol", "pw", nil)
	engine := newEngine(t, srv)
	oauthLogin(t, engine)

	req, err := http.NewRequest(http.MethodGet, srv.URL+profilePath, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer mine")

	resp, err := Authorize(engine, nil).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer mine", srv.LastAuthorization(profilePath))
}

func TestAuthorizeAnonymousSendsNoHeader(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	engine := newEngine(t, srv)

	client := &http.Client{Transport: Authorize(engine, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, srv.LastAuthorization(profilePath))
}

func TestRetryOnUnauthorizedRefreshesOnce(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("carol", "pw", nil)
	engine := newEngine(t, srv)
	oauthLogin(t, engine)

	stale := engine.Snapshot().OAuth.AccessToken
	srv.ExpireAccessToken(stale)
	hits := srv.Hits(profilePath)

	client := &http.Client{Transport: RetryOnUnauthorized(engine, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"username":"carol"`)
	assert.Equal(t, hits+2, srv.Hits(profilePath))

	fresh := engine.Snapshot().OAuth.AccessToken
	assert.NotEqual(t, stale, fresh)
	assert.Equal(t, "Bearer "+fresh, srv.LastAuthorization(profilePath))
}

func TestRetryOnUnauthorizedReplaysBody(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("carol", "pw", nil)
	engine := newEngine(t, srv)
	oauthLogin(t, engine)
	srv.ExpireAccessToken(engine.Snapshot().OAuth.AccessToken)

	var bodies []string
	recorder := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Body != nil {
			data, _ := io.ReadAll(req.Body)
			bodies = append(bodies, string(data))
			req.Body = io.NopCloser(strings.NewReader(string(data)))
		}
		return http.DefaultTransport.RoundTrip(req)
	})

	// The body is wrapped so the request cannot rewind it on its own.
	req, err := http.NewRequest(http.MethodPost, srv.URL+profilePath, io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	req.GetBody = nil

	resp, err := RetryOnUnauthorized(engine, recorder).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"payload", "payload"}, bodies)
}

func TestRetryOnUnauthorizedGivesUpWhenRefreshFails(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("carol", "pw", nil)
	engine := newEngine(t, srv)
	oauthLogin(t, engine)

	srv.ExpireAccessToken(engine.Snapshot().OAuth.AccessToken)
	srv.SetRejectTokenGrant(true)
	hits := srv.Hits(profilePath)

	client := &http.Client{Transport: RetryOnUnauthorized(engine, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, hits+1, srv.Hits(profilePath))
}

func TestRetryOnUnauthorizedSkipsNonOAuthSessions(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	engine := newEngine(t, srv)

	client := &http.Client{Transport: RetryOnUnauthorized(engine, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, srv.Hits(profilePath))
	assert.Equal(t, 0, srv.Hits("/api/v1/oauth/token/"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestAuthorizeNilEngineSendsNoHeader(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()

	client := &http.Client{Transport: Authorize(nil, nil)}
	resp, err := client.Get(srv.URL + profilePath)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, srv.LastAuthorization(profilePath))
}
