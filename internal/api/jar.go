package api

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// Jar is a cookie jar that can be emptied in place. Clients holding it keep
// working across a reset.
type Jar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

// NewJar returns an empty jar.
func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Jar{inner: inner}, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	inner.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	return inner.Cookies(u)
}

// Reset drops every stored cookie.
func (j *Jar) Reset() {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}
