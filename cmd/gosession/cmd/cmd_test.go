package cmd

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeinstance"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		configPath, instanceURL, redisAddr, namespace, logLevel = "", "", "", "", ""
		loginUsername, loginPassword, loginNext = "", "", "/"
		oauthNext, oauthCode, oauthState = "/", "", "/"
		demoMetrics = false
	}
	reset()
	t.Cleanup(reset)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

type fixture struct {
	srv  *fakeinstance.Server
	mr   *miniredis.Miniredis
	base []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resetFlags(t)

	srv := fakeinstance.New()
	t.Cleanup(srv.Close)
	srv.AddUser("alice", "pw", map[string]bool{"library": true})

	mr := miniredis.RunT(t)
	return &fixture{
		srv:  srv,
		mr:   mr,
		base: []string{"--instance", srv.InstanceURL(), "--redis", mr.Addr(), "--log-level", "error"},
	}
}

func (f *fixture) args(extra ...string) []string {
	return append(append([]string(nil), f.base...), extra...)
}

func decodeReport(t *testing.T, out string) sessionReport {
	t.Helper()
	var r sessionReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	return r
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  instance_url: https://file.example
persistence:
  namespace: from-file
`), 0o600))

	configPath = path
	namespace = "from-flag"
	logLevel = "debug"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.Server.InstanceURL)
	assert.Equal(t, "from-flag", cfg.Persistence.Namespace)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	resetFlags(t)
	configPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := loadConfig()
	require.Error(t, err)
}

func TestLoginWhoamiLogout_AcrossInvocations(t *testing.T) {
	f := newFixture(t)
	f.srv.SetLegacyTokens(true)

	out, err := run(t, f.args("login", "-u", "alice", "-p", "pw", "--next", "/library")...)
	require.NoError(t, err)
	assert.Contains(t, out, "navigate: /library")
	assert.Contains(t, out, "logged in as alice@")
	assert.True(t, f.mr.Exists("gs:cred:default"))

	out, err = run(t, f.args("whoami")...)
	require.NoError(t, err)
	r := decodeReport(t, out)
	assert.True(t, r.Authenticated)
	assert.Equal(t, session.ModePasswordToken.String(), r.Mode)
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, []string{"library"}, r.Permissions)
	assert.NotEmpty(t, r.TokenExpires)

	out, err = run(t, f.args("logout")...)
	require.NoError(t, err)
	assert.Contains(t, out, "navigate: /")
	assert.False(t, f.mr.Exists("gs:cred:default"))
	assert.Equal(t, 1, f.srv.Hits("/api/v1/users/logout"))

	out, err = run(t, f.args("check")...)
	require.NoError(t, err)
	assert.False(t, decodeReport(t, out).Authenticated)
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("login", "-u", "alice", "-p", "wrong")...)
	require.Error(t, err)
	assert.Contains(t, out, "login rejected")
	assert.False(t, f.mr.Exists("gs:cred:default"))
}

func TestOAuthBeginCallbackRefresh(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("oauth", "begin", "--next", "/favorites")...)
	require.NoError(t, err)
	require.Contains(t, out, "open in a browser: ")

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "open in a browser: "))
	authorizeURL, err := url.Parse(raw)
	require.NoError(t, err)
	clientID := authorizeURL.Query().Get("client_id")
	require.NotEmpty(t, clientID)
	assert.Equal(t, "/favorites", authorizeURL.Query().Get("state"))

	code := f.srv.IssueCode(clientID, "alice")
	out, err = run(t, f.args("oauth", "callback", "--code", code, "--state", "/favorites")...)
	require.NoError(t, err)
	assert.Contains(t, out, "navigate: /favorites")

	out, err = run(t, f.args("refresh")...)
	require.NoError(t, err)
	assert.Contains(t, out, "token refreshed")
	assert.Equal(t, 2, f.srv.Hits("/api/v1/oauth/token/"))

	out, err = run(t, f.args("whoami")...)
	require.NoError(t, err)
	r := decodeReport(t, out)
	assert.True(t, r.Authenticated)
	assert.Equal(t, session.ModeOAuth.String(), r.Mode)
}

func TestRefresh_WithoutSession(t *testing.T) {
	f := newFixture(t)

	_, err := run(t, f.args("refresh")...)
	require.Error(t, err)
	assert.ErrorIs(t, err, goSession.ErrClientNotRegistered)
}

func TestDemo(t *testing.T) {
	resetFlags(t)

	var out bytes.Buffer
	demoMetrics = true
	require.NoError(t, runDemo(context.Background(), &out))

	text := out.String()
	assert.Contains(t, text, "== password login")
	assert.Contains(t, text, "navigate: /library")
	assert.Contains(t, text, "navigate: /favorites")
	assert.Contains(t, text, "token refreshed")
	assert.Contains(t, text, "gosession_login_success_total 1")
	assert.Contains(t, text, "gosession_refresh_success_total 1")
}

func TestReportSession_Anonymous(t *testing.T) {
	snap := goSession.Snapshot{Mode: session.ModeNone}
	r := reportSession(snap)
	assert.False(t, r.Authenticated)
	assert.Empty(t, r.TokenExpires)
	assert.Empty(t, r.Permissions)
}
