package flows

import (
	"context"
	"net/url"

	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Profile.API != nil && s.deps.Profile.Store != nil
}

func (s Service) PasswordLogin(ctx context.Context, credentials url.Values) LoginResult {
	return RunPasswordLogin(ctx, credentials, s.deps.Login)
}

func (s Service) FetchProfile(ctx context.Context) ProfileResult {
	return RunFetchProfile(ctx, s.deps.Profile)
}

func (s Service) ApplyProfile(ctx context.Context, gen uint64, data *session.ProfileData) ProfileResult {
	return RunApplyProfile(ctx, gen, data, s.deps.Profile)
}

func (s Service) Check(ctx context.Context) CheckResult {
	return RunCheck(ctx, s.deps.Check)
}

func (s Service) Logout(ctx context.Context) LogoutResult {
	return RunLogout(ctx, s.deps.Logout)
}

// RegisterClient registers reg, falling back to the wired registration for
// unset fields.
func (s Service) RegisterClient(ctx context.Context, reg oauth.Registration) RegisterResult {
	deps := s.deps.Register
	if reg.Name != "" {
		deps.Registration.Name = reg.Name
	}
	if reg.Website != "" {
		deps.Registration.Website = reg.Website
	}
	if reg.RedirectURI != "" {
		deps.Registration.RedirectURI = reg.RedirectURI
	}
	if len(reg.Scopes) > 0 {
		deps.Registration.Scopes = reg.Scopes
	}
	return RunRegisterClient(ctx, deps)
}

func (s Service) OAuthCallback(ctx context.Context, code string) CallbackResult {
	return RunOAuthCallback(ctx, code, s.deps.Callback)
}

func (s Service) Refresh(ctx context.Context) RefreshResult {
	return RunRefresh(ctx, s.deps.Refresh)
}
