package flows

import (
	"context"
	"fmt"
)

// LogoutResult carries the outcome of a logout. Logout itself always succeeds;
// the fields report what went wrong along the way.
type LogoutResult struct {
	TransportErr error
	Reset        []string
	PersistErr   error
	NavigateErr  error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	API            InstanceAPI
	Path           string
	Publish        func(ctx context.Context) []string
	ClearPersisted func(ctx context.Context) error
	Navigate       func(ctx context.Context) error
}

// RunLogout notifies the server best-effort, broadcasts the reset, clears
// persisted credentials and navigates home. A failed server call never stops
// local cleanup.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	resp, err := deps.API.Post(ctx, deps.Path)
	switch {
	case err != nil:
		res.TransportErr = err
	case !resp.OK():
		res.TransportErr = fmt.Errorf("logout: unexpected status %d", resp.StatusCode)
	}

	res.Reset = deps.Publish(ctx)

	if deps.ClearPersisted != nil {
		res.PersistErr = deps.ClearPersisted(ctx)
	}
	if deps.Navigate != nil {
		res.NavigateErr = deps.Navigate(ctx)
	}
	return res
}
