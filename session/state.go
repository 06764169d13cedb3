package session

import (
	"errors"
	"sync"

	"github.com/MrEthical07/goSession/permission"
)

// ErrStaleGeneration is returned when a conditional apply targets a generation
// that has since been reset.
var ErrStaleGeneration = errors.New("stale session generation")

// State is the credential store. The zero value is not usable; create one with
// [NewState].
type State struct {
	registry *permission.Registry

	mu            sync.RWMutex
	authenticated bool
	mode          Mode
	username      string
	fullUsername  string
	profile       *Profile
	token         string
	oauth         OAuthCredential
	permissions   permission.Set
	scoped        ScopedTokens
	generation    uint64
}

// NewState creates a store in its default unauthenticated form. A nil registry
// selects [permission.DefaultRegistry].
func NewState(registry *permission.Registry) *State {
	if registry == nil {
		registry = permission.DefaultRegistry()
	}
	s := &State{registry: registry}
	s.resetLocked()
	return s
}

// Reset restores every field to its default and advances the generation.
// Permissions are restored to the registry skeleton. Calling Reset twice leaves
// the same observable state apart from the generation.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *State) resetLocked() {
	s.authenticated = false
	s.mode = ModeNone
	s.username = ""
	s.fullUsername = ""
	s.profile = nil
	s.token = ""
	s.oauth = OAuthCredential{}
	s.permissions = s.registry.Skeleton()
	s.scoped = DefaultScopedTokens()
	s.generation++
}

// SetAuthenticated sets the authenticated flag. Setting false also clears
// username, full username, the legacy token, the profile and scoped tokens, and
// empties the permission mapping. OAuth material is kept.
func (s *State) SetAuthenticated(flag bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = flag
	if flag {
		return
	}
	s.username = ""
	s.fullUsername = ""
	s.token = ""
	if s.mode == ModePasswordToken {
		s.mode = ModeNone
	}
	s.profile = nil
	s.scoped = DefaultScopedTokens()
	s.permissions = permission.Set{}
}

// Authenticated reports the authenticated flag.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// SetProfile replaces the whole profile. The value is copied.
func (s *State) SetProfile(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p.Clone()
}

// Profile returns a copy of the stored profile, or nil.
func (s *State) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// SetPartialProfile applies every key of patch to the stored profile and keeps
// untouched keys. Known keys also update the typed fields. It is a no-op when
// no profile is stored.
func (s *State) SetPartialProfile(patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return
	}
	if s.profile.Raw == nil {
		s.profile.Raw = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		s.profile.Raw[k] = v
		switch k {
		case "username":
			if str, ok := v.(string); ok {
				s.profile.Username = str
			}
		case "full_username":
			if str, ok := v.(string); ok {
				s.profile.FullUsername = str
			}
		case "avatar":
			if str, ok := v.(string); ok {
				s.profile.AvatarURL = str
			}
		}
	}
}

// SetAvatar sets the profile avatar URL when a profile is stored.
func (s *State) SetAvatar(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil {
		s.profile.AvatarURL = url
	}
}

// SetUsername sets the username.
func (s *State) SetUsername(v string) {
	s.mu.Lock()
	s.username = v
	s.mu.Unlock()
}

// SetFullUsername sets the full username.
func (s *State) SetFullUsername(v string) {
	s.mu.Lock()
	s.fullUsername = v
	s.mu.Unlock()
}

// SetToken stores a legacy token and switches to [ModePasswordToken]. The OAuth
// variant is cleared. An empty token clears the variant and returns to
// [ModeNone].
func (s *State) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if token == "" {
		if s.mode == ModePasswordToken {
			s.mode = ModeNone
		}
		return
	}
	s.mode = ModePasswordToken
	s.oauth = OAuthCredential{}
}

// SetOAuthApp stores an app registration. The mode is unchanged until tokens
// arrive.
func (s *State) SetOAuthApp(clientID, clientSecret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauth.ClientID = clientID
	s.oauth.ClientSecret = clientSecret
}

// SetOAuthToken stores an access/refresh pair and switches to [ModeOAuth]. The
// legacy token is cleared.
func (s *State) SetOAuthToken(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOAuthTokenLocked(accessToken, refreshToken)
}

func (s *State) setOAuthTokenLocked(accessToken, refreshToken string) {
	s.oauth.AccessToken = accessToken
	s.oauth.RefreshToken = refreshToken
	s.token = ""
	if accessToken != "" {
		s.mode = ModeOAuth
	} else if s.mode == ModeOAuth {
		s.mode = ModeNone
	}
}

// CommitOAuthToken stores a token pair obtained under generation gen. It fails
// with [ErrStaleGeneration] when the store was reset in the meantime. An empty
// refreshToken keeps the current one.
func (s *State) CommitOAuthToken(gen uint64, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return ErrStaleGeneration
	}
	if refreshToken == "" {
		refreshToken = s.oauth.RefreshToken
	}
	s.setOAuthTokenLocked(accessToken, refreshToken)
	return nil
}

// CommitOAuthApp stores an app registration obtained under generation gen.
func (s *State) CommitOAuthApp(gen uint64, clientID, clientSecret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return ErrStaleGeneration
	}
	s.oauth.ClientID = clientID
	s.oauth.ClientSecret = clientSecret
	return nil
}

// CommitToken stores a legacy token obtained under generation gen.
func (s *State) CommitToken(gen uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return ErrStaleGeneration
	}
	s.token = token
	if token != "" {
		s.mode = ModePasswordToken
		s.oauth = OAuthCredential{}
	}
	return nil
}

// OAuth returns the OAuth variant.
func (s *State) OAuth() OAuthCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oauth
}

// Mode returns the active credential mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetPermission upserts one permission.
func (s *State) SetPermission(key string, status bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissions == nil {
		s.permissions = permission.Set{}
	}
	s.permissions[key] = status
}

// Permissions returns a copy of the permission mapping.
func (s *State) Permissions() permission.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions.Clone()
}

// HasPermission reports whether key is granted.
func (s *State) HasPermission(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions.Has(key)
}

// SetScopedTokens replaces the scoped-token mapping with a copy of tokens.
func (s *State) SetScopedTokens(tokens ScopedTokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoped = tokens.Clone()
}

// ScopedTokens returns a copy of the scoped-token mapping.
func (s *State) ScopedTokens() ScopedTokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoped.Clone()
}

// AuthorizationHeaderValue derives the Authorization header for outgoing API
// requests. OAuth mode yields "Bearer <access token>", password-token mode
// yields "JWT <token>". ok is false when no credential is held.
func (s *State) AuthorizationHeaderValue() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.mode {
	case ModeOAuth:
		if s.oauth.AccessToken != "" {
			return "Bearer " + s.oauth.AccessToken, true
		}
	case ModePasswordToken:
		if s.token != "" {
			return "JWT " + s.token, true
		}
	}
	return "", false
}

// Generation returns the current reset generation.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// ApplyProfile marks the session authenticated and stores the profile, names,
// scoped tokens (when present) and permissions from data in a single critical
// section. Permissions are upserted key by key. It fails with
// [ErrStaleGeneration] when gen no longer matches.
func (s *State) ApplyProfile(gen uint64, data *ProfileData) error {
	if data == nil {
		return errors.New("nil profile data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return ErrStaleGeneration
	}

	s.authenticated = true
	s.profile = data.Profile()
	s.username = data.Username
	s.fullUsername = data.FullUsername
	if tokens, ok := data.ScopedTokens(); ok {
		s.scoped = tokens
	}
	if s.permissions == nil {
		s.permissions = permission.Set{}
	}
	for key, status := range data.Permissions {
		s.permissions[key] = status
	}
	return nil
}

// Credentials returns the persistable credential union.
func (s *State) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credentials{
		Mode:  s.mode,
		Token: s.token,
		OAuth: s.oauth,
	}
}

// RestoreCredentials loads persisted credential material into the store without
// touching profile, permissions or the authenticated flag. Fields already held in
// memory win over persisted ones.
func (s *State) RestoreCredentials(c Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.oauth.ClientID == "" && s.oauth.ClientSecret == "" {
		s.oauth.ClientID = c.OAuth.ClientID
		s.oauth.ClientSecret = c.OAuth.ClientSecret
	}

	switch c.Mode {
	case ModeOAuth:
		if s.mode == ModeNone && c.OAuth.AccessToken != "" {
			s.oauth.AccessToken = c.OAuth.AccessToken
			s.oauth.RefreshToken = c.OAuth.RefreshToken
			s.mode = ModeOAuth
		}
	case ModePasswordToken:
		if s.mode == ModeNone && c.Token != "" {
			s.token = c.Token
			s.mode = ModePasswordToken
		}
	}
}

// Username returns the stored username.
func (s *State) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Snapshot returns a consistent, detached copy of every field.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Authenticated: s.authenticated,
		Mode:          s.mode,
		Username:      s.username,
		FullUsername:  s.fullUsername,
		Profile:       s.profile.Clone(),
		Token:         s.token,
		OAuth:         s.oauth,
		Permissions:   s.permissions.Clone(),
		ScopedTokens:  s.scoped.Clone(),
		Generation:    s.generation,
	}
}
