package session

import (
	"encoding/json"
	"strings"

	"github.com/MrEthical07/goSession/permission"
)

// Mode identifies which credential variant is active.
type Mode uint8

const (
	// ModeNone means no credential material is held. Requests are anonymous
	// or rely on a cookie-backed server session.
	ModeNone Mode = iota
	// ModePasswordToken means a legacy token obtained by password login is held.
	ModePasswordToken
	// ModeOAuth means an OAuth2 access/refresh token pair is held.
	ModeOAuth
)

func (m Mode) String() string {
	switch m {
	case ModePasswordToken:
		return "password_token"
	case ModeOAuth:
		return "oauth"
	default:
		return "none"
	}
}

// ScopeListen is the scoped-token name used for listening events.
const ScopeListen = "listen"

// ScopedTokens maps a scope name to an opaque token. An empty string stands for
// a scope the server has not issued a token for.
type ScopedTokens map[string]string

// DefaultScopedTokens returns the all-null scoped token mapping.
func DefaultScopedTokens() ScopedTokens {
	return ScopedTokens{ScopeListen: ""}
}

// Clone returns a shallow copy of t.
func (t ScopedTokens) Clone() ScopedTokens {
	out := make(ScopedTokens, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// OAuthCredential is the OAuth variant of the credential union. The client
// id/secret pair comes from app registration; the token pair from a code or
// refresh exchange.
type OAuthCredential struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// Registered reports whether an app registration is held.
func (c OAuthCredential) Registered() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Credentials is the persisted form of the credential union.
type Credentials struct {
	Mode  Mode
	Token string
	OAuth OAuthCredential
	// SavedAt is a unix timestamp in seconds.
	SavedAt int64
}

// Empty reports whether c carries nothing worth persisting.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.OAuth == (OAuthCredential{})
}

// Profile is the authenticated user's profile as held by the store.
type Profile struct {
	ID           int64
	Username     string
	FullUsername string
	AvatarURL    string
	// Raw is the full profile payload as returned by the server, including
	// fields the client does not interpret.
	Raw map[string]any
}

// Clone returns a deep-enough copy of p: Raw is copied one level deep.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Raw != nil {
		out.Raw = make(map[string]any, len(p.Raw))
		for k, v := range p.Raw {
			out.Raw[k] = v
		}
	}
	return &out
}

// ProfileData is the decoded body of the current-user profile endpoint.
type ProfileData struct {
	ID           int64              `json:"id"`
	Username     string             `json:"username"`
	FullUsername string             `json:"full_username"`
	Permissions  map[string]bool    `json:"permissions"`
	Tokens       map[string]*string `json:"tokens,omitempty"`
	Avatar       json.RawMessage    `json:"avatar,omitempty"`

	Raw map[string]any `json:"-"`
}

// DecodeProfileData decodes a profile response body. The untouched payload is
// kept in Raw.
func DecodeProfileData(body []byte) (*ProfileData, error) {
	var data ProfileData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &data.Raw); err != nil {
		return nil, err
	}
	return &data, nil
}

// AvatarURL extracts a usable avatar URL. The server sends either a plain URL
// string or an attachment object whose "urls" map carries the variants.
func (d *ProfileData) AvatarURL() string {
	if d == nil || len(d.Avatar) == 0 {
		return ""
	}
	var direct string
	if err := json.Unmarshal(d.Avatar, &direct); err == nil {
		return direct
	}
	var attachment struct {
		URLs map[string]string `json:"urls"`
	}
	if err := json.Unmarshal(d.Avatar, &attachment); err != nil {
		return ""
	}
	for _, key := range []string{"medium_square_crop", "original"} {
		if u := strings.TrimSpace(attachment.URLs[key]); u != "" {
			return u
		}
	}
	return ""
}

// ScopedTokens converts the optional tokens field. ok is false when the server
// sent no tokens field at all.
func (d *ProfileData) ScopedTokens() (ScopedTokens, bool) {
	if d == nil || d.Tokens == nil {
		return nil, false
	}
	out := make(ScopedTokens, len(d.Tokens))
	for k, v := range d.Tokens {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = *v
	}
	return out, true
}

// Profile converts d into the stored profile value.
func (d *ProfileData) Profile() *Profile {
	if d == nil {
		return nil
	}
	p := &Profile{
		ID:           d.ID,
		Username:     d.Username,
		FullUsername: d.FullUsername,
		AvatarURL:    d.AvatarURL(),
	}
	if d.Raw != nil {
		p.Raw = make(map[string]any, len(d.Raw))
		for k, v := range d.Raw {
			p.Raw[k] = v
		}
	}
	return p
}

// Snapshot is a consistent, detached copy of the store.
type Snapshot struct {
	Authenticated bool
	Mode          Mode
	Username      string
	FullUsername  string
	Profile       *Profile
	Token         string
	OAuth         OAuthCredential
	Permissions   permission.Set
	ScopedTokens  ScopedTokens
	Generation    uint64
}
