// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package chttp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SessionCookieName is the name of the CouchDB session cookie.
const SessionCookieName = "AuthSession"

// sessionRenewal is how long before its expiry a session cookie is renewed.
const sessionRenewal = time.Minute

// cookieAuth logs in with POST /_session before the first request, and again
// whenever the session cookie is missing, close to expiry, or was rejected.
// The cookie itself lives in the client's jar.
//
// cookieAuth holds per-client state, so Apply hands out a fresh copy.
type cookieAuth struct {
	Username string
	Password string

	client *Client
	next   http.RoundTripper

	// mu serializes logins, so concurrent requests share one session.
	mu sync.Mutex
	// expires is the expiry of the session cookie, which the jar does not
	// report. Zero if the server gave none.
	expires time.Time
}

var (
	_ authenticator = &cookieAuth{}
	_ Option        = (*cookieAuth)(nil)
)

func (a *cookieAuth) Apply(target interface{}) {
	if auth, ok := target.(*authenticator); ok {
		*auth = &cookieAuth{
			Username: a.Username,
			Password: a.Password,
		}
	}
}

func (a *cookieAuth) String() string {
	return fmt.Sprintf("[CookieAuth{user:%s,pass:%s}]", a.Username, strings.Repeat("*", len(a.Password)))
}

// Authenticate wraps the transport of c. No request is made until the first
// call through c.
func (a *cookieAuth) Authenticate(c *Client) error {
	a.client = c
	a.next = c.Transport
	if a.next == nil {
		a.next = http.DefaultTransport
	}
	c.Transport = a
	return nil
}

// Cookie returns the session cookie held in the jar, or nil.
func (a *cookieAuth) Cookie() *http.Cookie {
	if a.client == nil || a.client.Jar == nil {
		return nil
	}
	for _, cookie := range a.client.Jar.Cookies(a.client.dsn) {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	return nil
}

// fresh reports whether cookie may still be sent. A cookie without an expiry
// is kept until the server rejects it.
func (a *cookieAuth) fresh(cookie *http.Cookie) bool {
	if cookie == nil {
		return false
	}
	return a.expires.IsZero() || a.expires.After(time.Now().Add(sessionRenewal))
}

// discard expires the session cookie in the jar.
func (a *cookieAuth) discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	cookie := a.Cookie()
	if cookie == nil {
		return
	}
	cookie.MaxAge = -1
	a.client.Jar.SetCookies(a.client.dsn, []*http.Cookie{cookie})
	a.expires = time.Time{}
}

func (a *cookieAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := a.session(req); err != nil {
		return nil, err
	}
	res, err := a.next.RoundTrip(req)
	if err != nil {
		return res, err
	}
	if res.StatusCode == http.StatusUnauthorized && req.Context().Value(loggingIn{}) == nil {
		a.discard()
	}
	return res, nil
}

// loggingIn marks the context of the login request itself, which must pass
// through unauthenticated.
type loggingIn struct{}

// session makes sure req carries a session cookie which is not about to
// expire, logging in first if needed. A session cookie set on req by the
// caller is left alone.
func (a *cookieAuth) session(req *http.Request) error {
	ctx := req.Context()
	if ctx.Value(loggingIn{}) != nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	current := a.Cookie()
	if a.fresh(current) {
		// Already added to req from the jar.
		return nil
	}
	if _, err := req.Cookie(SessionCookieName); err == nil && current == nil {
		return nil
	}
	creds := map[string]string{"name": a.Username, "password": a.Password}
	res, err := a.client.DoError(context.WithValue(ctx, loggingIn{}, true), http.MethodPost, "/_session", &Options{
		GetBody: BodyEncoder(creds),
	})
	if err != nil {
		return err
	}
	a.expires = time.Time{}
	for _, c := range res.Cookies() {
		if c.Name == SessionCookieName {
			a.expires = c.Expires
		}
	}
	if cookie := a.Cookie(); cookie != nil {
		replaceCookie(req, cookie)
	}
	return nil
}

// replaceCookie sets cookie on req, in place of any of the same name.
func replaceCookie(req *http.Request, cookie *http.Cookie) {
	others := req.Cookies()
	req.Header.Del("Cookie")
	for _, c := range others {
		if c.Name != cookie.Name {
			req.AddCookie(c)
		}
	}
	req.AddCookie(cookie)
}
