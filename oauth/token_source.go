package oauth

import (
	"context"

	"golang.org/x/oauth2"
)

// RefreshFunc obtains a fresh token, typically by running a refresh grant and
// committing the result to the credential store.
type RefreshFunc func(ctx context.Context) (*oauth2.Token, error)

type refreshSource struct {
	ctx     context.Context
	refresh RefreshFunc
}

func (s refreshSource) Token() (*oauth2.Token, error) {
	return s.refresh(s.ctx)
}

// NewTokenSource returns an [oauth2.TokenSource] that serves current until it
// expires and then calls refresh. Tokens without expiry are served until the
// caller forces a refresh some other way.
func NewTokenSource(ctx context.Context, current *oauth2.Token, refresh RefreshFunc) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return oauth2.ReuseTokenSource(current, refreshSource{ctx: ctx, refresh: refresh})
}
