package middleware

import (
	"bytes"
	"io"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/api"
	"github.com/MrEthical07/goSession/session"
)

// Authorize returns a transport that attaches the engine's derived
// Authorization header to requests that do not already carry one. A nil base
// uses [http.DefaultTransport].
func Authorize(engine *goSession.Engine, base http.RoundTripper) http.RoundTripper {
	return &api.HeaderTransport{Base: orDefault(base), Source: engine.AuthorizationHeaderValue}
}

// RetryOnUnauthorized returns a transport that, on a 401 response to a request
// sent with an OAuth access token, refreshes the token once and replays the
// request with the new header. Requests in other credential modes, and
// requests whose refresh fails, get the original 401.
//
// Request bodies are buffered when the request cannot rewind them itself.
func RetryOnUnauthorized(engine *goSession.Engine, base http.RoundTripper) http.RoundTripper {
	return &retryTransport{engine: engine, base: Authorize(engine, base)}
}

type retryTransport struct {
	engine *goSession.Engine
	base   http.RoundTripper
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.refreshable() {
		return t.base.RoundTrip(req)
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if refreshErr := t.engine.RefreshOAuthToken(req.Context()); refreshErr != nil {
		return resp, nil
	}
	value, ok := t.engine.AuthorizationHeaderValue()
	if !ok {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", value)

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return t.base.RoundTrip(retry)
}

func (t *retryTransport) refreshable() bool {
	snap := t.engine.Snapshot()
	return snap.Mode == session.ModeOAuth && snap.OAuth.RefreshToken != ""
}

func orDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
