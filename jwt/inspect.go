package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be parsed at all.
var ErrMalformed = errors.New("malformed token")

// LegacyClaims are the claims carried by legacy login tokens.
type LegacyClaims struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	OrigIAT  int64  `json:"orig_iat,omitempty"`
	jwt.RegisteredClaims
}

// Info summarizes an inspected token.
type Info struct {
	Username  string
	UserID    int64
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token carries an expiry that lies before now
// minus leeway. Tokens without expiry never expire.
func (i Info) Expired(now time.Time, leeway time.Duration) bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return now.After(i.ExpiresAt.Add(leeway))
}

// Inspect parses token without verifying its signature.
func Inspect(token string) (Info, error) {
	if token == "" {
		return Info{}, ErrMalformed
	}

	parser := jwt.NewParser()
	claims := &LegacyClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	info := Info{
		Username: claims.Username,
		UserID:   claims.UserID,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	} else if claims.OrigIAT > 0 {
		info.IssuedAt = time.Unix(claims.OrigIAT, 0)
	}
	return info, nil
}

// Usable reports whether token parses and has not expired at now.
func Usable(token string, now time.Time, leeway time.Duration) bool {
	info, err := Inspect(token)
	if err != nil {
		return false
	}
	return !info.Expired(now, leeway)
}
