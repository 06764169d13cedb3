// Package fakeinstance runs an in-process stand-in for an instance API: password
// login, current-user profile, logout, OAuth app registration, authorization and
// token grants. It is used by tests and the runnable example.
package fakeinstance

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionCookie = "sessionid"

// User is an account known to the fake instance.
type User struct {
	ID          int64
	Username    string
	Password    string
	Permissions map[string]bool
}

// Server is a running fake instance.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]*User
	apps          map[string]string
	codes         map[string]string
	access        map[string]string
	refresh       map[string]string
	sessions      map[string]string
	legacy        map[string]string
	hits          map[string]int
	lastForm      map[string]url.Values
	lastAuthorize url.Values
	lastAuthz     map[string]string

	legacyTokens   bool
	omitRefresh    bool
	failProfile    bool
	failLogout     bool
	rejectToken    bool
	profileHold    *hold
	tokenHold      *hold
	authorizeAs    string
	nextUserID     int64
	signingKey     []byte
	legacyTokenTTL time.Duration
}

// New starts a fake instance. Close it when done.
func New() *Server {
	s := &Server{
		users:          make(map[string]*User),
		apps:           make(map[string]string),
		codes:          make(map[string]string),
		access:         make(map[string]string),
		refresh:        make(map[string]string),
		sessions:       make(map[string]string),
		legacy:         make(map[string]string),
		hits:           make(map[string]int),
		lastForm:       make(map[string]url.Values),
		lastAuthz:      make(map[string]string),
		signingKey:     []byte(uuid.NewString()),
		legacyTokenTTL: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/login", s.handleLogin)
	mux.HandleFunc("/api/v1/users/logout", s.handleLogout)
	mux.HandleFunc("/api/v1/users/users/me/", s.handleMe)
	mux.HandleFunc("/api/v1/oauth/apps/", s.handleApps)
	mux.HandleFunc("/api/v1/oauth/token/", s.handleToken)
	mux.HandleFunc("/authorize", s.handleAuthorize)

	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// InstanceURL returns the instance root with a trailing slash.
func (s *Server) InstanceURL() string {
	return s.URL + "/"
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.lastAuthz[r.URL.Path] = r.Header.Get("Authorization")
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AddUser registers an account and returns it.
func (s *Server) AddUser(username, password string, permissions map[string]bool) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := &User{
		ID:          s.nextUserID,
		Username:    username,
		Password:    password,
		Permissions: permissions,
	}
	s.users[username] = u
	return u
}

// IssueCode mints an authorization code for clientID on behalf of username,
// as the authorize endpoint would after the user consents.
func (s *Server) IssueCode(clientID, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := uuid.NewString()
	s.codes[code] = clientID + "|" + username
	return code
}

// SetLegacyTokens makes password login return a {"token": ...} body.
func (s *Server) SetLegacyTokens(v bool) { s.mu.Lock(); s.legacyTokens = v; s.mu.Unlock() }

// SetOmitRefreshToken makes refresh grants answer without a refresh_token.
func (s *Server) SetOmitRefreshToken(v bool) { s.mu.Lock(); s.omitRefresh = v; s.mu.Unlock() }

// SetFailProfile makes the profile endpoint answer 500.
func (s *Server) SetFailProfile(v bool) { s.mu.Lock(); s.failProfile = v; s.mu.Unlock() }

// SetFailLogout makes the logout endpoint answer 404, as for OAuth sessions
// that have no server-side logout.
func (s *Server) SetFailLogout(v bool) { s.mu.Lock(); s.failLogout = v; s.mu.Unlock() }

// SetAuthorizeUser selects the account that consents at the authorize endpoint.
func (s *Server) SetAuthorizeUser(username string) { s.mu.Lock(); s.authorizeAs = username; s.mu.Unlock() }

// SetRejectTokenGrant makes every token grant answer 400.
func (s *Server) SetRejectTokenGrant(v bool) { s.mu.Lock(); s.rejectToken = v; s.mu.Unlock() }

// SetLegacyTokenTTL sets the lifetime of issued legacy tokens.
func (s *Server) SetLegacyTokenTTL(d time.Duration) { s.mu.Lock(); s.legacyTokenTTL = d; s.mu.Unlock() }

// hold parks requests on gate until it is closed.
type hold struct {
	gate    chan struct{}
	started chan struct{}
}

func (h *hold) wait() {
	if h == nil {
		return
	}
	select {
	case h.started <- struct{}{}:
	default:
	}
	<-h.gate
}

func (s *Server) newHold(slot **hold) (started <-chan struct{}, release func()) {
	h := &hold{gate: make(chan struct{}), started: make(chan struct{}, 16)}
	s.mu.Lock()
	*slot = h
	s.mu.Unlock()
	var once sync.Once
	return h.started, func() {
		once.Do(func() {
			s.mu.Lock()
			*slot = nil
			s.mu.Unlock()
			close(h.gate)
		})
	}
}

// HoldProfile blocks profile responses until the returned release func is
// called. started receives one value per request that reached the gate.
func (s *Server) HoldProfile() (started <-chan struct{}, release func()) {
	return s.newHold(&s.profileHold)
}

// HoldToken does the same for the token endpoint.
func (s *Server) HoldToken() (started <-chan struct{}, release func()) {
	return s.newHold(&s.tokenHold)
}

// ExpireAccessToken revokes an access token so the next use is answered 401.
func (s *Server) ExpireAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, token)
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// LastForm returns the last form body posted to path.
func (s *Server) LastForm(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm[path]
}

// LastAuthorization returns the Authorization header of the last request to path.
func (s *Server) LastAuthorization(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthz[path]
}

// LastAuthorizeQuery returns the query of the last authorize request.
func (s *Server) LastAuthorizeQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthorize
}

// ClientSecret returns the secret of a registered app.
func (s *Server) ClientSecret(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.apps[clientID]
	return secret, ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid form"})
		return
	}

	s.mu.Lock()
	s.lastForm[r.URL.Path] = r.PostForm
	u, ok := s.users[r.PostForm.Get("username")]
	if !ok || u.Password != r.PostForm.Get("password") {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	sid := uuid.NewString()
	s.sessions[sid] = u.Username
	legacy := s.legacyTokens
	ttl := s.legacyTokenTTL
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})

	if !legacy {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	tok, err := s.legacyToken(u, ttl)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) legacyToken(u *User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  u.ID,
		"username": u.Username,
		"orig_iat": now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.legacy[tok] = u.Username
	s.mu.Unlock()
	return tok, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failLogout
	if !fail {
		if c, err := r.Cookie(sessionCookie); err == nil {
			delete(s.sessions, c.Value)
		}
	}
	s.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) identify(r *http.Request) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authz := r.Header.Get("Authorization")
	var username string
	switch {
	case strings.HasPrefix(authz, "Bearer "):
		username = s.access[strings.TrimPrefix(authz, "Bearer ")]
	case strings.HasPrefix(authz, "JWT "):
		username = s.legacy[strings.TrimPrefix(authz, "JWT ")]
	default:
		if c, err := r.Cookie(sessionCookie); err == nil {
			username = s.sessions[c.Value]
		}
	}
	u, ok := s.users[username]
	return u, ok
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.profileHold
	fail := s.failProfile
	s.mu.Unlock()

	h.wait()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
		return
	}

	u, ok := s.identify(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}

	perms := make(map[string]bool, len(u.Permissions))
	for k, v := range u.Permissions {
		perms[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"full_username": u.Username + "@" + r.Host,
		"privacy_level": "me",
		"permissions":   perms,
		"tokens":        map[string]any{"listen": "listen-" + u.Username},
		"avatar": map[string]any{
			"urls": map[string]string{
				"original":           "http://" + r.Host + "/media/" + u.Username + ".png",
				"medium_square_crop": "http://" + r.Host + "/media/" + u.Username + "-crop.png",
			},
		},
	})
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}
	var payload struct {
		Name         string `json:"name"`
		Website      string `json:"website"`
		Scopes       string `json:"scopes"`
		RedirectURIs string `json:"redirect_uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid payload"})
		return
	}

	clientID := uuid.NewString()
	secret := uuid.NewString()
	s.mu.Lock()
	s.apps[clientID] = secret
	s.lastForm[r.URL.Path] = url.Values{
		"name":          {payload.Name},
		"website":       {payload.Website},
		"scopes":        {payload.Scopes},
		"redirect_uris": {payload.RedirectURIs},
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"client_id":     clientID,
		"client_secret": secret,
		"name":          payload.Name,
		"scopes":        payload.Scopes,
	})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	s.lastAuthorize = q
	_, known := s.apps[q.Get("client_id")]
	username := s.authorizeAs
	if username == "" {
		for name := range s.users {
			username = name
			break
		}
	}
	s.mu.Unlock()

	if !known || q.Get("response_type") != "code" || username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid authorization request"})
		return
	}

	code := s.IssueCode(q.Get("client_id"), username)
	target, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid redirect_uri"})
		return
	}
	tq := target.Query()
	tq.Set("code", code)
	tq.Set("state", q.Get("state"))
	target.RawQuery = tq.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if r.Method != http.MethodPost || mediaType != "multipart/form-data" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	form := url.Values(r.MultipartForm.Value)

	s.mu.Lock()
	h := s.tokenHold
	s.mu.Unlock()
	h.wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastForm[r.URL.Path] = form

	if s.rejectToken {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	clientID := form.Get("client_id")
	if secret, ok := s.apps[clientID]; !ok || secret != form.Get("client_secret") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	var username string
	switch form.Get("grant_type") {
	case "authorization_code":
		owner, ok := s.codes[form.Get("code")]
		if !ok || !strings.HasPrefix(owner, clientID+"|") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		delete(s.codes, form.Get("code"))
		username = strings.TrimPrefix(owner, clientID+"|")
	case "refresh_token":
		owner, ok := s.refresh[form.Get("refresh_token")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		username = owner
		if !s.omitRefresh {
			delete(s.refresh, form.Get("refresh_token"))
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	access := uuid.NewString()
	s.access[access] = username
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   36000,
		"scope":        "read write",
	}
	if !(s.omitRefresh && form.Get("grant_type") == "refresh_token") {
		refresh := uuid.NewString()
		s.refresh[refresh] = username
		body["refresh_token"] = refresh
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
