package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
)

// Dependent fetch names, in the order they are dispatched.
const (
	FetchUnreadNotifications   = "ui/fetchUnreadNotifications"
	FetchPendingReviewEdits    = "ui/fetchPendingReviewEdits"
	FetchPendingReviewReports  = "ui/fetchPendingReviewReports"
	FetchPendingReviewRequests = "ui/fetchPendingReviewRequests"
	FetchFavorites             = "favorites/fetch"
	FetchChannelSubscriptions  = "channels/fetchSubscriptions"
	FetchLibraryFollows        = "libraries/fetchFollows"
	FetchContentFilters        = "moderation/fetchContentFilters"
	FetchOwnPlaylists          = "playlists/fetchOwn"
)

// FanOutPlan returns the dependent fetches triggered by a profile carrying
// perms. Review fetches are gated on the library and moderation permissions.
func FanOutPlan(perms permission.Set) []string {
	plan := make([]string, 0, 9)
	plan = append(plan, FetchUnreadNotifications)
	if perms.Has(permission.KeyLibrary) {
		plan = append(plan, FetchPendingReviewEdits)
	}
	if perms.Has(permission.KeyModeration) {
		plan = append(plan, FetchPendingReviewReports, FetchPendingReviewRequests)
	}
	return append(plan,
		FetchFavorites,
		FetchChannelSubscriptions,
		FetchLibraryFollows,
		FetchContentFilters,
		FetchOwnPlaylists,
	)
}

// ProfileFailureKind classifies profile flow failures for root-level mapping.
type ProfileFailureKind int

const (
	ProfileFailureNone ProfileFailureKind = iota
	ProfileFailureTransport
	ProfileFailureStatus
	ProfileFailureDecode
	ProfileFailureStale
)

// ProfileResult carries the fetched profile or failure metadata.
type ProfileResult struct {
	Failure    ProfileFailureKind
	Err        error
	Response   *api.Response
	Data       *session.ProfileData
	Dispatched []string
	// DispatchErrs holds per-fetch failures; they never fail the flow.
	DispatchErrs map[string]error
}

// ProfileDeps captures profile flow dependencies.
type ProfileDeps struct {
	API      InstanceAPI
	Path     string
	Store    CredentialStore
	Dispatch func(ctx context.Context, name string) error
	Warn     func(string, ...any)
}

// RunFetchProfile GETs the current-user profile and applies it. The store
// generation is captured before the request; a response that arrives after a
// reset is discarded.
func RunFetchProfile(ctx context.Context, deps ProfileDeps) ProfileResult {
	gen := deps.Store.Generation()

	resp, err := deps.API.Get(ctx, deps.Path)
	if err != nil {
		return ProfileResult{Failure: ProfileFailureTransport, Err: err}
	}
	if !resp.OK() {
		return ProfileResult{
			Failure:  ProfileFailureStatus,
			Err:      fmt.Errorf("profile: unexpected status %d", resp.StatusCode),
			Response: resp,
		}
	}

	data, err := session.DecodeProfileData(resp.Body)
	if err != nil {
		return ProfileResult{Failure: ProfileFailureDecode, Err: err, Response: resp}
	}

	res := RunApplyProfile(ctx, gen, data, deps)
	res.Response = resp
	return res
}

// RunApplyProfile stores data under generation gen and then dispatches the
// dependent fetches. Dispatch starts only after the store has committed the
// whole profile, permissions included.
func RunApplyProfile(ctx context.Context, gen uint64, data *session.ProfileData, deps ProfileDeps) ProfileResult {
	if err := deps.Store.ApplyProfile(gen, data); err != nil {
		kind := ProfileFailureDecode
		if errors.Is(err, session.ErrStaleGeneration) {
			kind = ProfileFailureStale
		}
		return ProfileResult{Failure: kind, Err: err}
	}

	res := ProfileResult{Data: data}
	if deps.Dispatch == nil {
		return res
	}

	plan := FanOutPlan(permission.Set(data.Permissions))
	res.Dispatched = make([]string, 0, len(plan))
	for _, name := range plan {
		res.Dispatched = append(res.Dispatched, name)
		if err := deps.Dispatch(ctx, name); err != nil {
			if res.DispatchErrs == nil {
				res.DispatchErrs = make(map[string]error)
			}
			res.DispatchErrs[name] = err
			warn(deps.Warn, "dependent fetch %s failed: %v", name, err)
		}
	}
	return res
}
