package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeinstance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Code
}

func TestGuard(t *testing.T) {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("alice", "pw", map[string]bool{"library": true})
	engine := newEngine(t, srv)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(RequireAuthenticated(engine)(ok)))
	assert.Equal(t, http.StatusUnauthorized, serve(Guard(nil, "")(ok)))

	require.NoError(t, engine.Login(context.Background(), "/", goSession.LoginCredentials{Username: "alice", Password: "pw"}, nil))

	assert.Equal(t, http.StatusNoContent, serve(RequireAuthenticated(engine)(ok)))
	assert.Equal(t, http.StatusNoContent, serve(Guard(engine, "library")(ok)))
	assert.Equal(t, http.StatusForbidden, serve(Guard(engine, "moderation")(ok)))
}
