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

// Package chttp sends JSON requests to a CouchDB server, and turns error
// responses into errors carrying the HTTP status.
package chttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"runtime"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const typeJSON = "application/json"

// The default UserAgent values
const (
	UserAgent = "couchcall chttp"
	Version   = "1.0.0"
)

// HeaderDestination names the target of a COPY request.
const HeaderDestination = "Destination"

// Client sends requests to a single CouchDB server. Every request path is
// resolved against the server URL, including any path prefix it has.
type Client struct {
	// UserAgents are appended to the User-Agent header, as product/version
	// pairs.
	UserAgents []string

	*http.Client

	rawDSN   string
	dsn      *url.URL
	basePath string
	auth     authenticator
}

// New returns a client for the server at dsn. The scheme defaults to http.
// Credentials in the URL select cookie auth; pass [BasicAuth] instead for
// HTTP Basic Auth.
//
// The client gets a cookie jar if it has none, to carry the session cookie.
func New(client *http.Client, dsn string, options ...Option) (*Client, error) {
	server, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}
	c := &Client{
		Client:   client,
		rawDSN:   dsn,
		dsn:      server,
		basePath: strings.TrimSuffix(server.Path, "/"),
	}
	if c.Jar == nil {
		// Only a nil Options makes cookiejar.New fail.
		c.Jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	}

	var auth authenticator
	if creds := server.User; creds != nil {
		server.User = nil
		password, _ := creds.Password()
		auth = &cookieAuth{Username: creds.Username(), Password: password}
	}
	for _, opt := range options {
		if opt != nil {
			opt.Apply(c)
			opt.Apply(&auth)
		}
	}
	if auth != nil {
		if err := auth.Authenticate(c); err != nil {
			return nil, err
		}
		c.auth = auth
	}
	c.UserAgents = append([]string{"couchcall/" + Version}, c.UserAgents...)
	return c, nil
}

func parseDSN(dsn string) (*url.URL, error) {
	switch {
	case dsn == "":
		return nil, &TransportError{Status: http.StatusBadRequest, Err: errors.New("no URL specified")}
	case !strings.HasPrefix(dsn, "http://") && !strings.HasPrefix(dsn, "https://"):
		dsn = "http://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, &TransportError{Status: http.StatusBadRequest, Err: err}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// DSN returns the URL passed to [New], as given.
func (c *Client) DSN() string {
	return c.rawDSN
}

// URL returns a copy of the server URL, without credentials.
func (c *Client) URL() *url.URL {
	u := *c.dsn
	return &u
}

// path prefixes p with the base path of the server URL.
func (c *Client) path(p string) string {
	if c.basePath == "" {
		return p
	}
	return c.basePath + "/" + strings.TrimPrefix(p, "/")
}

// NewRequest returns a request for path on the server. Only the path and
// query of path are used.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(c.path(path))
	if err != nil {
		return nil, &TransportError{Status: http.StatusBadRequest, Err: err}
	}
	target := c.URL()
	target.Path, target.RawPath, target.RawQuery = ref.Path, ref.RawPath, ref.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, &TransportError{Status: http.StatusBadRequest, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent())
	return req, nil
}

func (c *Client) userAgent() string {
	ua := fmt.Sprintf("%s/%s (Language=%s; Platform=%s/%s)",
		UserAgent, Version, runtime.Version(), runtime.GOARCH, runtime.GOOS)
	return strings.Join(append([]string{ua}, c.UserAgents...), " ")
}

// requestBody resolves the body of opts, preferring GetBody.
func requestBody(opts *Options) (io.ReadCloser, error) {
	switch {
	case opts == nil:
		return nil, nil
	case opts.GetBody != nil:
		return opts.GetBody()
	}
	return opts.Body, nil
}

// DoReq sends a request. The error reports only a failure to get a response:
// a 4xx or 5xx response is returned as is. The caller closes the body.
func (c *Client) DoReq(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	if method == "" {
		return nil, errors.New("chttp: method required")
	}
	body, err := requestBody(opts)
	if err != nil {
		return nil, err
	}
	var reqBody io.Reader
	if body != nil {
		defer body.Close() // nolint: errcheck
		reqBody = body
	}
	req, err := c.NewRequest(ctx, method, path, reqBody)
	if err != nil {
		return nil, err
	}
	fixPath(req, c.path(path))
	setHeaders(req, opts)
	setQuery(req, opts)
	if opts != nil {
		req.GetBody = opts.GetBody
	}

	trace := ContextClientTrace(ctx)
	if trace != nil {
		trace.httpRequest(req)
		trace.httpRequestBody(req)
	}
	res, err := c.Do(req)
	if trace != nil {
		trace.httpResponse(res)
		trace.httpResponseBody(res)
	}
	return res, netError(err)
}

// DoError is DoReq for requests whose response body is not needed. The body
// is always closed, and an error status becomes an error.
func (c *Client) DoError(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return res, err
	}
	defer CloseBody(res.Body)
	return res, ResponseError(res)
}

// DoJSON sends a request and decodes a successful response into i, which may
// be nil to discard it. The body is always closed.
func (c *Client) DoJSON(ctx context.Context, method, path string, opts *Options, i interface{}) error {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return err
	}
	defer CloseBody(res.Body)
	if err := ResponseError(res); err != nil {
		return err
	}
	if i == nil {
		return nil
	}
	return DecodeJSON(res, i)
}

// DecodeJSON decodes the body of r into i, and closes it.
func DecodeJSON(r *http.Response, i interface{}) error {
	defer CloseBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(i); err != nil {
		return &DecodeError{Status: r.StatusCode, Err: err}
	}
	return nil
}

// CloseBody drains and closes body, so that the connection may be re-used.
func CloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// netError gives a failed round trip a status. A failure that carries its own
// status, such as a body that could not be encoded, keeps it; anything else
// is a 502.
func netError(err error) error {
	if err == nil {
		return nil
	}
	var withStatus interface {
		error
		HTTPStatus() int
	}
	if errors.As(err, &withStatus) {
		return withStatus
	}
	return &TransportError{Status: http.StatusBadGateway, Err: err}
}

// fixPath keeps escaped characters in the request path, such as the %2F of a
// document ID containing a slash.
func fixPath(req *http.Request, path string) {
	path, _, _ = strings.Cut(path, "?")
	req.URL.RawPath = "/" + strings.TrimPrefix(path, "/")
}

func setHeaders(req *http.Request, opts *Options) {
	accept, contentType := typeJSON, typeJSON
	if opts != nil {
		if opts.Accept != "" {
			accept = opts.Accept
		}
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
		for k, v := range opts.Header {
			if _, set := req.Header[k]; !set {
				req.Header[k] = v
			}
		}
	}
	req.Header.Add("Accept", accept)
	req.Header.Add("Content-Type", contentType)
}

// setQuery appends the query of opts to any query already in the URL.
func setQuery(req *http.Request, opts *Options) {
	if opts == nil || len(opts.Query) == 0 {
		return
	}
	query := opts.Query.Encode()
	if req.URL.RawQuery != "" {
		query = req.URL.RawQuery + "&" + query
	}
	req.URL.RawQuery = query
}

// BodyEncoder returns a GetBody function which encodes i afresh on each call,
// so the request may be replayed.
func BodyEncoder(i interface{}) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return EncodeBody(i), nil
	}
}

// EncodeBody returns i as a request body. Byte slices, raw JSON and strings
// are sent as they are; anything else is JSON encoded. An encoding failure is
// returned, as a 400, by the first Read.
func EncodeBody(i interface{}) io.ReadCloser {
	switch t := i.(type) {
	case []byte:
		return io.NopCloser(bytes.NewReader(t))
	case json.RawMessage:
		return io.NopCloser(bytes.NewReader(t))
	case string:
		return io.NopCloser(strings.NewReader(t))
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(i); err != nil {
		return failedBody{&TransportError{Status: http.StatusBadRequest, Err: err}}
	}
	return io.NopCloser(&buf)
}

// failedBody is a body which could not be encoded.
type failedBody struct{ err error }

func (b failedBody) Read([]byte) (int, error) { return 0, b.err }

func (failedBody) Close() error { return nil }
