package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// GrantAuthorizationCode is the grant_type of a code exchange.
	GrantAuthorizationCode = "authorization_code"
	// GrantRefreshToken is the grant_type of a refresh exchange.
	GrantRefreshToken = "refresh_token"
)

// DefaultScopes is the fixed scope set requested at registration and
// authorization. The client does no incremental scope negotiation.
var DefaultScopes = []string{"read", "write"}

const maxBodyBytes = 1 << 20

// ErrNoRefreshToken is returned by [Client.Refresh] when no refresh token is given.
var ErrNoRefreshToken = errors.New("no refresh token")

// ErrNotRegistered is returned when an exchange is attempted without an app
// registration.
var ErrNotRegistered = errors.New("oauth client not registered")

// Op names an exchange for error reporting.
type Op string

const (
	OpRegister Op = "register"
	OpCode     Op = "authorization_code"
	OpRefresh  Op = "refresh_token"
)

// ResponseError is returned when the server answers an exchange with a
// non-success status. It carries the raw response.
type ResponseError struct {
	Op         Op
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("oauth %s: unexpected status %d", e.Op, e.StatusCode)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// App is a registered OAuth application.
type App struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Registration describes the application to register.
type Registration struct {
	Name        string
	Website     string
	RedirectURI string
	Scopes      []string
}

// Endpoints are absolute URLs of the instance's OAuth endpoints.
type Endpoints struct {
	Apps      string
	Authorize string
	Token     string
}

// Client talks to one instance's OAuth endpoints.
type Client struct {
	endpoints   Endpoints
	redirectURI string
	scopes      []string
	http        Doer
	now         func() time.Time
}

// NewClient creates a [Client]. A nil doer selects [http.DefaultClient]; nil or
// empty scopes select [DefaultScopes].
func NewClient(endpoints Endpoints, redirectURI string, scopes []string, doer Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &Client{
		endpoints:   endpoints,
		redirectURI: redirectURI,
		scopes:      append([]string(nil), scopes...),
		http:        doer,
		now:         time.Now,
	}
}

// Scope returns the space-joined scope string sent to the server.
func (c *Client) Scope() string {
	return strings.Join(c.scopes, " ")
}

// RedirectURI returns the callback URI registered for the app.
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

// RegisterApp creates a new application on the instance.
func (c *Client) RegisterApp(ctx context.Context, reg Registration) (App, error) {
	scopes := reg.Scopes
	if len(scopes) == 0 {
		scopes = c.scopes
	}
	redirect := reg.RedirectURI
	if redirect == "" {
		redirect = c.redirectURI
	}

	payload, err := json.Marshal(map[string]string{
		"name":          reg.Name,
		"website":       reg.Website,
		"scopes":        strings.Join(scopes, " "),
		"redirect_uris": redirect,
	})
	if err != nil {
		return App{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Apps, bytes.NewReader(payload))
	if err != nil {
		return App{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, OpRegister)
	if err != nil {
		return App{}, err
	}

	var app App
	if err := json.Unmarshal(body, &app); err != nil {
		return App{}, fmt.Errorf("oauth %s: decode response: %w", OpRegister, err)
	}
	if app.ClientID == "" || app.ClientSecret == "" {
		return App{}, fmt.Errorf("oauth %s: response missing client credentials", OpRegister)
	}
	return app, nil
}

// AuthorizeURL builds the URL the user agent is sent to. state is echoed back
// to the callback unchanged.
func (c *Client) AuthorizeURL(app App, state string) string {
	return c.config(app).AuthCodeURL(state)
}

func (c *Client) config(app App) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.endpoints.Authorize,
			TokenURL: c.endpoints.Token,
		},
		RedirectURL: c.redirectURI,
		Scopes:      c.scopes,
	}
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, app App, code string) (*oauth2.Token, error) {
	if app.ClientID == "" {
		return nil, ErrNotRegistered
	}
	return c.grant(ctx, OpCode, [][2]string{
		{"client_id", app.ClientID},
		{"client_secret", app.ClientSecret},
		{"grant_type", GrantAuthorizationCode},
		{"code", code},
		{"redirect_uri", c.redirectURI},
	})
}

// Refresh trades a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, app App, refreshToken string) (*oauth2.Token, error) {
	if app.ClientID == "" {
		return nil, ErrNotRegistered
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return c.grant(ctx, OpRefresh, [][2]string{
		{"client_id", app.ClientID},
		{"client_secret", app.ClientSecret},
		{"grant_type", GrantRefreshToken},
		{"refresh_token", refreshToken},
	})
}

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (c *Client) grant(ctx context.Context, op Op, fields [][2]string) (*oauth2.Token, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}

	var tj tokenJSON
	if err := json.Unmarshal(body, &tj); err != nil {
		return nil, fmt.Errorf("oauth %s: decode response: %w", op, err)
	}
	if tj.AccessToken == "" {
		return nil, fmt.Errorf("oauth %s: response missing access_token", op)
	}

	tok := &oauth2.Token{
		AccessToken:  tj.AccessToken,
		TokenType:    tj.TokenType,
		RefreshToken: tj.RefreshToken,
		ExpiresIn:    tj.ExpiresIn,
	}
	if tj.ExpiresIn > 0 {
		tok.Expiry = c.now().Add(time.Duration(tj.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]any{"scope": tj.Scope}), nil
}

func (c *Client) do(req *http.Request, op Op) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("oauth %s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
	}
	return body, nil
}
