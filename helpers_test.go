package goSession

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/internal/fakeinstance"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	mu        sync.Mutex
	paths     []string
	redirects []string
	err       error
}

func (n *recordingNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return n.err
}

func (n *recordingNavigator) Redirect(_ context.Context, u string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, u)
	return n.err
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func (n *recordingNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

type orderLog struct {
	mu    sync.Mutex
	names []string
}

func (l *orderLog) subscriber(name string) Resettable {
	return ResettableFunc(func() {
		l.mu.Lock()
		l.names = append(l.names, name)
		l.mu.Unlock()
	})
}

func (l *orderLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newFakeInstance(t testing.TB) *fakeinstance.Server {
	t.Helper()
	srv := fakeinstance.New()
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *fakeinstance.Server) Config {
	cfg := DefaultConfig()
	cfg.Server.InstanceURL = srv.InstanceURL()
	cfg.Client.BaseURL = "http://client.test"
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// buildTestEngine builds an engine against srv with a recording navigator
// and a quiet logger. configure may add more options.
func buildTestEngine(t testing.TB, srv *fakeinstance.Server, configure func(*Builder)) (*Engine, *recordingNavigator) {
	t.Helper()

	nav := &recordingNavigator{}
	b := New().
		WithConfig(testConfig(srv)).
		WithNavigator(nav).
		WithLogger(quietLogger())
	if configure != nil {
		configure(b)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, nav
}

// followAuthorize plays the user agent: it requests the authorize URL and
// returns the code and state carried by the redirect back to the client.
func followAuthorize(t testing.TB, authorizeURL string) (code, state string) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authorizeURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get("code"), loc.Query().Get("state")
}

const (
	loginPath   = "/api/v1/users/login"
	logoutPath  = "/api/v1/users/logout"
	profilePath = "/api/v1/users/users/me/"
	appsPath    = "/api/v1/oauth/apps/"
	tokenPath   = "/api/v1/oauth/token/"
)
