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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Option is a configuration value which may be applied to a [Client], to a
// request's [Options], or to any other target which understands it. Options
// silently ignore targets they do not recognize.
type Option interface {
	Apply(target interface{})
}

// Options are optional parameters which may be sent with a request.
type Options struct {
	// Accept sets the request's Accept header. Defaults to "application/json".
	// To specify any, use "*/*".
	Accept string

	// ContentType sets the requests's Content-Type header. Defaults to "application/json".
	ContentType string

	// Body sets the body of the request.
	Body io.ReadCloser

	// GetBody is a function to set the body, and can be used on retries. If
	// set, Body is ignored.
	GetBody func() (io.ReadCloser, error)

	// Query is appended to the exiting url, if present. If the passed url
	// already contains query parameters, the values in Query are appended.
	// No merging takes place.
	Query url.Values

	// Header is a list of default headers to be set on the request.
	Header http.Header
}

// NewOptions applies opts to a fresh *Options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	return o
}

type optionUserAgent string

func (a optionUserAgent) Apply(target interface{}) {
	if client, ok := target.(*Client); ok {
		client.UserAgents = append(client.UserAgents, string(a))
	}
}

func (a optionUserAgent) String() string {
	return fmt.Sprintf("[UserAgent:%s]", string(a))
}

// OptionUserAgent may be passed as an option when creating a client object,
// to append to the default User-Agent header sent on all requests.
func OptionUserAgent(ua string) Option {
	return optionUserAgent(ua)
}

type optionHTTPClient struct {
	*http.Client
}

func (o optionHTTPClient) Apply(target interface{}) {
	if client, ok := target.(*Client); ok && o.Client != nil {
		jar := client.Jar
		client.Client = o.Client
		if client.Jar == nil {
			client.Jar = jar
		}
	}
}

func (o optionHTTPClient) String() string {
	return "[HTTPClient]"
}

// OptionHTTPClient replaces the *http.Client used to issue requests. If the
// supplied client has no cookie jar, the default jar is retained.
func OptionHTTPClient(c *http.Client) Option {
	return optionHTTPClient{Client: c}
}

type optionHeader http.Header

func (o optionHeader) Apply(target interface{}) {
	if opts, ok := target.(*Options); ok {
		if opts.Header == nil {
			opts.Header = http.Header{}
		}
		for k, v := range o {
			opts.Header[k] = append(opts.Header[k], v...)
		}
	}
}

func (o optionHeader) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	return fmt.Sprintf("[Header:%s]", strings.Join(keys, ","))
}

// OptionHeader adds arbitrary headers to a single request.
func OptionHeader(h http.Header) Option {
	return optionHeader(h)
}

// CookieAuth provides CouchDB [Cookie auth]. Cookie Auth is the default
// authentication method if credentials are included in the connection URL
// passed to [New]. You may also pass this option as an argument to the same
// function, if you need to provide your auth credentials outside of the URL.
//
// [Cookie auth]: http://docs.couchdb.org/en/stable/api/server/authn.html#cookie-authentication
func CookieAuth(username, password string) Option {
	return &cookieAuth{
		Username: username,
		Password: password,
	}
}

// BasicAuth provides HTTP Basic Auth for a client. Pass this option to [New]
// to use Basic Authentication.
func BasicAuth(username, password string) Option {
	return &basicAuth{
		Username: username,
		Password: password,
	}
}
