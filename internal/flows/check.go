package flows

import "context"

// CheckResult carries the outcome of an authentication check.
type CheckResult struct {
	Authenticated bool
	RestoreErr    error
	Profile       ProfileResult
}

// CheckDeps captures check flow dependencies.
type CheckDeps struct {
	Store        CredentialStore
	Restore      func(ctx context.Context) error
	FetchProfile func(ctx context.Context) ProfileResult
}

// RunCheck drops to unauthenticated, restores persisted credentials, then
// fetches the profile. It never fails; a missing profile means anonymous.
func RunCheck(ctx context.Context, deps CheckDeps) CheckResult {
	deps.Store.SetAuthenticated(false)

	var res CheckResult
	if deps.Restore != nil {
		res.RestoreErr = deps.Restore(ctx)
	}

	// ApplyProfile sets the flag under the generation guard. A reset during the
	// dependent fetches clears it again and must not be undone here.
	res.Profile = deps.FetchProfile(ctx)
	res.Authenticated = res.Profile.Failure == ProfileFailureNone &&
		res.Profile.Data != nil &&
		deps.Store.Authenticated()
	return res
}
