package goSession

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/oauth"
)

var (
	// ErrAuthExchangeFailure matches every failed login, registration, code exchange or refresh.
	ErrAuthExchangeFailure = errors.New("auth exchange failure")
	// ErrCredentialRejected matches exchanges the server answered with a non-2xx status.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrProfileFetchFailed is returned when credentials were accepted but no profile could be obtained.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrLogoutTransport is reported through audit and logs when the logout call fails. Logout itself never returns it.
	ErrLogoutTransport = errors.New("logout transport failure")
	// ErrClientNotRegistered is returned when an OAuth exchange runs without an app registration.
	ErrClientNotRegistered = errors.New("oauth client not registered")
	// ErrNoRefreshToken is returned when a refresh is requested without a stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrStaleResponse is returned when a response arrived after the session was reset and was discarded.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNavigatorMissing is returned when an operation that only navigates has no Navigator.
	ErrNavigatorMissing = errors.New("navigator not configured")
	// ErrPersistenceUnavailable is returned when credential persistence is disabled or unreachable.
	ErrPersistenceUnavailable = errors.New("credential persistence unavailable")
)

// Exchange operation names carried by ExchangeError.
const (
	ExchangeOpLogin    = "login"
	ExchangeOpRegister = string(oauth.OpRegister)
	ExchangeOpCode     = string(oauth.OpCode)
	ExchangeOpRefresh  = string(oauth.OpRefresh)
)

// ExchangeError describes a failed exchange with the instance. When the server
// answered, StatusCode, Header and Body hold the raw response; otherwise Err
// holds the transport error.
type ExchangeError struct {
	Op         string
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server responded %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": exchange failed"
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Is matches ErrAuthExchangeFailure always, and ErrCredentialRejected when the
// server answered.
func (e *ExchangeError) Is(target error) bool {
	switch target {
	case ErrAuthExchangeFailure:
		return true
	case ErrCredentialRejected:
		return e.StatusCode != 0
	}
	return false
}

// Rejected reports whether the server answered with a non-2xx status.
func (e *ExchangeError) Rejected() bool {
	return e != nil && e.StatusCode != 0
}

func exchangeErrorFromResponse(op string, resp *api.Response) *ExchangeError {
	if resp == nil {
		return &ExchangeError{Op: op}
	}
	return &ExchangeError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}
}

func exchangeErrorFrom(op string, err error) *ExchangeError {
	var respErr *oauth.ResponseError
	if errors.As(err, &respErr) {
		return &ExchangeError{
			Op:         string(respErr.Op),
			StatusCode: respErr.StatusCode,
			Header:     respErr.Header,
			Body:       respErr.Body,
		}
	}
	return &ExchangeError{Op: op, Err: err}
}
