package flows

import (
	"context"
	"net/url"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/oauth2"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates operations to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Profile  ProfileDeps
	Check    CheckDeps
	Logout   LogoutDeps
	Register RegisterDeps
	Callback CallbackDeps
	Refresh  RefreshDeps
}

// InstanceAPI is the subset of the instance client used by flows.
type InstanceAPI interface {
	Get(ctx context.Context, path string) (*api.Response, error)
	Post(ctx context.Context, path string) (*api.Response, error)
	PostForm(ctx context.Context, path string, form url.Values) (*api.Response, error)
}

// OAuthClient is the subset of the OAuth client used by flows.
type OAuthClient interface {
	RegisterApp(ctx context.Context, reg oauth.Registration) (oauth.App, error)
	ExchangeCode(ctx context.Context, app oauth.App, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, app oauth.App, refreshToken string) (*oauth2.Token, error)
}

// CredentialStore is the subset of the credential store used by flows.
type CredentialStore interface {
	Generation() uint64
	SetAuthenticated(bool)
	Authenticated() bool
	ApplyProfile(gen uint64, data *session.ProfileData) error
	CommitToken(gen uint64, token string) error
	CommitOAuthApp(gen uint64, clientID, clientSecret string) error
	CommitOAuthToken(gen uint64, accessToken, refreshToken string) error
	OAuth() session.OAuthCredential
}

func warn(fn func(string, ...any), format string, args ...any) {
	if fn != nil {
		fn(format, args...)
	}
}
