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

package couchcall

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ajg/form"

	"github.com/go-kivik/couchcall/chttp"
)

// Session describes the authenticated user.
type Session struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`

	// AuthenticationMethod is the method used to authenticate the current
	// request, such as "cookie" or "default". It is only set by
	// [Client.Session].
	AuthenticationMethod   string   `json:"-"`
	AuthenticationDB       string   `json:"-"`
	AuthenticationHandlers []string `json:"-"`
}

type sessionResponse struct {
	OK      bool    `json:"ok"`
	UserCtx Session `json:"userCtx"`
	Info    struct {
		AuthenticationMethod   string   `json:"authenticated"`
		AuthenticationDB       string   `json:"authentication_db"`
		AuthenticationHandlers []string `json:"authentication_handlers"`
	} `json:"info"`
}

type credentials struct {
	Name     string `form:"name"`
	Password string `form:"password"`
}

// Login starts a cookie session for name. The session cookie is retained by
// the client and sent with subsequent requests.
func (c *Client) Login(ctx context.Context, name, password string) (*Session, error) {
	body, err := form.EncodeToString(credentials{Name: name, Password: password})
	if err != nil {
		return nil, badRequest("invalid credentials: %s", err)
	}
	opts := &chttp.Options{
		ContentType: "application/x-www-form-urlencoded",
		GetBody: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
	var sess Session
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodPost, "/_session", opts, &sess)); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout ends the current cookie session.
func (c *Client) Logout(ctx context.Context) (*Ack, error) {
	var ack Ack
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodDelete, "/_session", nil, &ack)); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Session returns the session of the current user. An anonymous user has an
// empty Name.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var res sessionResponse
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodGet, "/_session", nil, &res)); err != nil {
		return nil, err
	}
	sess := res.UserCtx
	sess.AuthenticationMethod = res.Info.AuthenticationMethod
	sess.AuthenticationDB = res.Info.AuthenticationDB
	sess.AuthenticationHandlers = res.Info.AuthenticationHandlers
	return &sess, nil
}
