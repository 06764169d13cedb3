package goSession

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goSession/internal/flows"
)

// FetchProfile GETs the current-user profile, applies it, and dispatches the
// dependent fetches allowed by its permissions. On failure it returns a nil
// profile and an error matching ErrProfileFetchFailed, or ErrStaleResponse when
// the session was reset while the request was in flight.
func (e *Engine) FetchProfile(ctx context.Context) (*ProfileData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx = ensureCorrelationID(ctx)

	res := e.fetchProfile(ctx)
	if err := profileError(res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ApplyProfile marks the session authenticated with data and dispatches the
// dependent fetches. It is what FetchProfile does with a successful response.
func (e *Engine) ApplyProfile(ctx context.Context, data *ProfileData) error {
	if err := e.ready(); err != nil {
		return err
	}
	if data == nil {
		return errors.New("profile data is nil")
	}
	ctx = ensureCorrelationID(ctx)

	res := e.flows.ApplyProfile(ctx, e.state.Generation(), data)
	e.recordProfile(ctx, res)
	return profileError(res)
}

func (e *Engine) fetchProfile(ctx context.Context) flows.ProfileResult {
	res := e.flows.FetchProfile(ctx)
	e.recordProfile(ctx, res)
	return res
}

func (e *Engine) recordProfile(ctx context.Context, res flows.ProfileResult) {
	log := e.log(ctx, "fetch_profile")

	switch res.Failure {
	case flows.ProfileFailureNone:
		e.metricInc(MetricProfileFetchSuccess)
		e.metrics.Add(MetricFanOutDispatched, uint64(len(res.Dispatched)))
		e.metrics.Add(MetricFanOutFailure, uint64(len(res.DispatchErrs)))
		log.Info("Successfully fetched user profile")
		e.emitAudit(ctx, auditEventProfileFetched, true, nil, func() map[string]string {
			return map[string]string{
				"dispatched":      strconv.Itoa(len(res.Dispatched)),
				"dispatch_failed": strconv.Itoa(len(res.DispatchErrs)),
			}
		})
	case flows.ProfileFailureStale:
		e.metricInc(MetricStaleDiscarded)
		log.Info("Discarding profile fetched before a session reset")
		e.emitAudit(ctx, auditEventProfileStale, false, ErrStaleResponse, nil)
	default:
		e.metricInc(MetricProfileFetchFailure)
		entry := log.WithError(res.Err)
		if res.Response != nil {
			entry = entry.WithField("status", res.Response.StatusCode)
		}
		entry.Info("Error while fetching user profile")
		e.emitAudit(ctx, auditEventProfileFailed, false, ErrProfileFetchFailed, nil)
	}
}

func profileError(res flows.ProfileResult) error {
	switch res.Failure {
	case flows.ProfileFailureNone:
		return nil
	case flows.ProfileFailureStale:
		return fmt.Errorf("%w: %v", ErrStaleResponse, res.Err)
	default:
		return fmt.Errorf("%w: %v", ErrProfileFetchFailed, res.Err)
	}
}
