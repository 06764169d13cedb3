package goSession

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Login submits creds to the login endpoint, fetches the profile, and navigates
// to next (the home path when empty).
//
// A transport failure or a non-2xx response calls onError with the
// [ExchangeError], leaves the session untouched and returns the same error.
// When the credentials were accepted but no profile could be fetched, Login
// returns an error matching ErrProfileFetchFailed without calling onError or
// navigating.
func (e *Engine) Login(ctx context.Context, next string, creds LoginCredentials, onError LoginErrorFunc) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx = ensureCorrelationID(ctx)
	log := e.log(ctx, "login")

	start := time.Now()
	res := e.flows.PasswordLogin(ctx, creds.form())
	e.observeExchange(start)

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		log.Infof("Successfully logged in as %s", res.Profile.Data.Username)
		e.emitAudit(ctx, auditEventLoginSuccess, true, nil, func() map[string]string {
			return map[string]string{"legacy_token": fmt.Sprint(res.Token != "")}
		})
		return e.navigate(ctx, next)

	case flows.LoginFailureTransport, flows.LoginFailureRejected:
		xerr := exchangeErrorFromResponse(ExchangeOpLogin, res.Response)
		if res.Failure == flows.LoginFailureTransport {
			xerr = &ExchangeError{Op: ExchangeOpLogin, Err: res.Err}
		}
		e.metricInc(MetricLoginFailure)
		log.WithError(xerr).Info("Error while logging in")
		e.emitAudit(ctx, auditEventLoginFailure, false, xerr, nil)
		if onError != nil {
			onError(xerr)
		}
		return xerr

	case flows.LoginFailureStale:
		e.metricInc(MetricLoginFailure)
		log.Info("Discarding login completed after a session reset")
		e.emitAudit(ctx, auditEventLoginFailure, false, ErrStaleResponse, nil)
		return fmt.Errorf("%w: %v", ErrStaleResponse, res.Err)

	default:
		e.metricInc(MetricLoginFailure)
		log.WithError(res.Err).Info("Error while logging in")
		e.emitAudit(ctx, auditEventLoginFailure, false, ErrProfileFetchFailed, nil)
		return fmt.Errorf("%w: %v", ErrProfileFetchFailed, res.Err)
	}
}

func (e *Engine) navigate(ctx context.Context, next string) error {
	if e.navigator == nil {
		return nil
	}
	if err := e.navigator.Navigate(ctx, e.inAppPath(next)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// inAppPath keeps navigation inside the client: anything that is not a plain
// absolute path falls back to the home path.
func (e *Engine) inAppPath(next string) string {
	if len(next) == 0 || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return e.config.Client.HomePath
	}
	return next
}
