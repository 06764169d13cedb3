package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Password logins that produced a profile."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Password logins rejected or failed."},
	{ID: goSession.MetricProfileFetchSuccess, Name: "gosession_profile_fetch_success_total", Help: "Profiles fetched and applied."},
	{ID: goSession.MetricProfileFetchFailure, Name: "gosession_profile_fetch_failure_total", Help: "Profile fetches that yielded no profile."},
	{ID: goSession.MetricStaleDiscarded, Name: "gosession_stale_discarded_total", Help: "Responses discarded because the session was reset while in flight."},
	{ID: goSession.MetricOAuthClientRegistered, Name: "gosession_oauth_client_registered_total", Help: "OAuth applications registered."},
	{ID: goSession.MetricOAuthClientFailure, Name: "gosession_oauth_client_failure_total", Help: "Failed OAuth application registrations."},
	{ID: goSession.MetricCodeExchangeSuccess, Name: "gosession_code_exchange_success_total", Help: "Authorization codes exchanged for tokens."},
	{ID: goSession.MetricCodeExchangeFailure, Name: "gosession_code_exchange_failure_total", Help: "Failed authorization code exchanges."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: goSession.MetricRefreshCoalesced, Name: "gosession_refresh_coalesced_total", Help: "Refresh calls served by an exchange already in flight."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts."},
	{ID: goSession.MetricLogoutTransportFailure, Name: "gosession_logout_transport_failure_total", Help: "Logouts whose server call failed."},
	{ID: goSession.MetricSessionReset, Name: "gosession_session_reset_total", Help: "Reset broadcasts."},
	{ID: goSession.MetricCheckAuthenticated, Name: "gosession_check_authenticated_total", Help: "Checks that found an authenticated user."},
	{ID: goSession.MetricCheckAnonymous, Name: "gosession_check_anonymous_total", Help: "Checks that found an anonymous user."},
	{ID: goSession.MetricFanOutDispatched, Name: "gosession_fanout_dispatched_total", Help: "Dependent fetches dispatched after a profile fetch."},
	{ID: goSession.MetricFanOutFailure, Name: "gosession_fanout_failure_total", Help: "Dependent fetches whose dispatch failed."},
	{ID: goSession.MetricPersistFailure, Name: "gosession_persist_failure_total", Help: "Failed credential persistence writes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricExchangeLatency, Name: "gosession_exchange_latency_seconds", Help: "Login and token exchange latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last engine
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
