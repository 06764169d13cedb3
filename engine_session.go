package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Check is the canonical "am I logged in" entry point, meant to run once at
// startup. It drops to unauthenticated, restores persisted credentials,
// fetches the profile and reports whether a user is authenticated. Failures
// mean an anonymous user and are never returned.
func (e *Engine) Check(ctx context.Context) bool {
	if e.ready() != nil {
		return false
	}
	ctx = ensureCorrelationID(ctx)
	log := e.log(ctx, "check")
	log.Info("Checking authentication...")

	res := e.flows.Check(ctx)
	if res.RestoreErr != nil && !errors.Is(res.RestoreErr, session.ErrCredentialsNotFound) {
		log.WithError(res.RestoreErr).Warn("Could not restore persisted credentials")
	}

	if !res.Authenticated {
		e.metricInc(MetricCheckAnonymous)
		log.Info("Anonymous user")
		e.emitAudit(ctx, auditEventCheckAnonymous, true, nil, nil)
		return false
	}

	e.metricInc(MetricCheckAuthenticated)
	e.emitAudit(ctx, auditEventCheckAuthenticated, true, nil, nil)
	return true
}

// Logout notifies the server best-effort, resets every registered container in
// order, clears persisted credentials and navigates home. It only returns an
// error when navigation fails; the session is cleared regardless.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx = ensureCorrelationID(ctx)
	log := e.log(ctx, "logout")

	res := e.flows.Logout(ctx)

	e.metricInc(MetricLogout)
	var auditErr error
	if res.TransportErr != nil {
		auditErr = fmt.Errorf("%w: %v", ErrLogoutTransport, res.TransportErr)
		e.metricInc(MetricLogoutTransportFailure)
		log.WithError(res.TransportErr).Info("Error while logging out, probably logged in via oauth")
	}
	if res.PersistErr != nil {
		e.metricInc(MetricPersistFailure)
		log.WithError(res.PersistErr).Warn("Could not clear persisted credentials")
	}
	log.Info("Log out, goodbye!")
	e.emitAudit(ctx, auditEventLogout, true, auditErr, func() map[string]string {
		return map[string]string{"server_notified": fmt.Sprint(res.TransportErr == nil)}
	})

	if res.NavigateErr != nil {
		return fmt.Errorf("navigate: %w", res.NavigateErr)
	}
	return nil
}

// Reset ends the session locally: every registered container is reset in
// order, the credential store first, and persisted credentials are cleared.
// It returns the subscriber names in delivery order.
func (e *Engine) Reset(ctx context.Context) []string {
	if e.ready() != nil {
		return nil
	}
	ctx = ensureCorrelationID(ctx)

	names := e.publishReset(ctx)
	if e.store != nil {
		if err := e.clearPersisted(ctx); err != nil {
			e.log(ctx, "reset").WithError(err).Warn("Could not clear persisted credentials")
		}
	}
	return names
}

// Restore loads persisted credentials into the store. Credentials already held
// in memory win. An expired legacy token is discarded. It returns
// ErrPersistenceUnavailable when no Redis client is configured.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.store == nil {
		return ErrPersistenceUnavailable
	}
	return e.restoreCredentials(ensureCorrelationID(ctx))
}

func (e *Engine) restoreCredentials(ctx context.Context) error {
	ns := e.config.Persistence.Namespace
	creds, err := e.store.Load(ctx, ns)
	if err != nil {
		if errors.Is(err, session.ErrCredentialsNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	if creds.Mode == session.ModePasswordToken && !jwt.Usable(creds.Token, e.now(), e.config.Persistence.LegacyTokenLeeway) {
		e.log(ctx, "restore").Info("Discarding expired legacy token")
		creds.Token = ""
		creds.Mode = session.ModeNone
		if err := e.store.Save(ctx, ns, *creds); err != nil {
			e.metricInc(MetricPersistFailure)
		}
	}

	e.state.RestoreCredentials(*creds)
	e.emitAudit(ctx, auditEventCredentialsRestored, true, nil, func() map[string]string {
		return map[string]string{"mode": creds.Mode.String()}
	})
	return nil
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.Save(ctx, e.config.Persistence.Namespace, e.state.Credentials()); err != nil {
		e.metricInc(MetricPersistFailure)
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}

func (e *Engine) clearPersisted(ctx context.Context) error {
	if err := e.store.Delete(ctx, e.config.Persistence.Namespace); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}
