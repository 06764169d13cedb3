package goSession

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventProfileFetched      = "profile_fetched"
	auditEventProfileFailed       = "profile_failed"
	auditEventProfileStale        = "profile_stale"
	auditEventOAuthAppRegistered  = "oauth_app_registered"
	auditEventOAuthAppFailed      = "oauth_app_failed"
	auditEventOAuthAuthorize      = "oauth_authorize_redirect"
	auditEventOAuthCodeExchanged  = "oauth_code_exchanged"
	auditEventOAuthCodeFailed     = "oauth_code_failed"
	auditEventTokenRefreshed      = "token_refreshed"
	auditEventTokenRefreshFailed  = "token_refresh_failed"
	auditEventCheckAuthenticated  = "check_authenticated"
	auditEventCheckAnonymous      = "check_anonymous"
	auditEventLogout              = "logout"
	auditEventSessionReset        = "session_reset"
	auditEventCredentialsRestored = "credentials_restored"
)

// AuditErrorCode defines a public type used by goSession APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrCredentialRejected AuditErrorCode = "credential_rejected"
	auditErrTransport          AuditErrorCode = "transport"
	auditErrProfileFetch       AuditErrorCode = "profile_fetch_failed"
	auditErrLogoutTransport    AuditErrorCode = "logout_transport"
	auditErrNotRegistered      AuditErrorCode = "client_not_registered"
	auditErrNoRefreshToken     AuditErrorCode = "no_refresh_token"
	auditErrStale              AuditErrorCode = "stale_response"
	auditErrNavigation         AuditErrorCode = "navigator_missing"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	snap := e.state.Snapshot()
	event := AuditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		CorrelationID: correlationIDFromContext(ctx),
		Username:      snap.Username,
		Mode:          snap.Mode.String(),
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStaleResponse):
		return auditErrStale
	case errors.Is(err, ErrCredentialRejected):
		return auditErrCredentialRejected
	case errors.Is(err, ErrAuthExchangeFailure):
		return auditErrTransport
	case errors.Is(err, ErrProfileFetchFailed):
		return auditErrProfileFetch
	case errors.Is(err, ErrLogoutTransport):
		return auditErrLogoutTransport
	case errors.Is(err, ErrClientNotRegistered):
		return auditErrNotRegistered
	case errors.Is(err, ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrNavigatorMissing):
		return auditErrNavigation
	case errors.Is(err, ErrPersistenceUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
