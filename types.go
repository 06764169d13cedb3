package goSession

import (
	"context"
	"net/url"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// ProfileData is the decoded current-user profile payload.
type ProfileData = session.ProfileData

// Snapshot is a consistent copy of the credential store.
type Snapshot = session.Snapshot

// Action names a dependent fetch triggered by a profile fetch.
type Action string

const (
	ActionFetchUnreadNotifications   Action = flows.FetchUnreadNotifications
	ActionFetchPendingReviewEdits    Action = flows.FetchPendingReviewEdits
	ActionFetchPendingReviewReports  Action = flows.FetchPendingReviewReports
	ActionFetchPendingReviewRequests Action = flows.FetchPendingReviewRequests
	ActionFetchFavorites             Action = flows.FetchFavorites
	ActionFetchChannelSubscriptions  Action = flows.FetchChannelSubscriptions
	ActionFetchLibraryFollows        Action = flows.FetchLibraryFollows
	ActionFetchContentFilters        Action = flows.FetchContentFilters
	ActionFetchOwnPlaylists          Action = flows.FetchOwnPlaylists
)

// Dispatcher receives dependent fetches after a profile has been applied. A
// returned error is logged and counted but never fails the profile fetch.
type Dispatcher interface {
	Dispatch(ctx context.Context, action Action) error
}

// DispatcherFunc adapts a function to [Dispatcher].
type DispatcherFunc func(ctx context.Context, action Action) error

func (f DispatcherFunc) Dispatch(ctx context.Context, action Action) error {
	return f(ctx, action)
}

// Navigator moves the user agent. Navigate targets an in-app route; Redirect
// sends the user agent to an absolute URL, such as the OAuth authorize page.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
	Redirect(ctx context.Context, url string) error
}

// Resettable is a state container that restores its defaults when the session
// ends. Reset must complete before it returns.
type Resettable interface {
	Reset()
}

// ResettableFunc adapts a function to [Resettable].
type ResettableFunc func()

func (f ResettableFunc) Reset() {
	f()
}

// ResetSubscriberAuth is the reserved name of the credential store subscriber.
const ResetSubscriberAuth = "auth"

// DefaultResetOrder lists the containers a complete client registers, in
// broadcast order. The credential store is always first.
var DefaultResetOrder = []string{ResetSubscriberAuth, "favorites", "player", "playlists", "queue", "radios"}

// LoginCredentials is submitted form-encoded to the login endpoint.
type LoginCredentials struct {
	Username string
	Password string
	// Extra carries additional form fields, such as a captcha answer.
	Extra url.Values
}

func (c LoginCredentials) form() url.Values {
	form := url.Values{}
	for k, v := range c.Extra {
		form[k] = append([]string(nil), v...)
	}
	form.Set("username", c.Username)
	form.Set("password", c.Password)
	return form
}

// LoginErrorFunc receives the failed login exchange.
type LoginErrorFunc func(err *ExchangeError)
