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
	"log"
	"net/http"
	"strings"

	"github.com/go-kivik/couchcall/chttp"
)

// Version is the version of the couchcall library.
const Version = chttp.Version

// Client is a connection to a CouchDB server. A Client is safe for concurrent
// use, and its configuration does not change after [New] returns.
type Client struct {
	prefix string
	chttp  *chttp.Client
	logger *log.Logger
}

// New returns a client for the server at prefix, e.g.
// "http://localhost:5984". Credentials embedded in prefix are used for cookie
// authentication, and are stripped from [Client.Prefix].
//
// The following options are recognized:
//
//   - [OptionHTTPClient]
//   - [OptionLogger]
//   - [OptionUserAgent]
//   - [BasicAuth]
//   - [CookieAuth]
func New(prefix string, options ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range options {
		if opt != nil {
			opt.Apply(c)
		}
	}
	httpClient, err := chttp.New(&http.Client{}, prefix, options...)
	if err != nil {
		return nil, convertError(err)
	}
	c.chttp = httpClient
	c.prefix = strings.TrimSuffix(httpClient.URL().String(), "/")
	return c, nil
}

// Prefix returns the server address, without credentials or a trailing slash.
func (c *Client) Prefix() string {
	return c.prefix
}

// DB returns a handle to the named database. No request is made; use
// [DB.Create] or [DB.Info] to check whether the database exists.
func (c *Client) DB(name string) *DB {
	return &DB{
		client: c,
		name:   name,
	}
}

// HTTP returns the underlying request dispatcher.
func (c *Client) HTTP() *chttp.Client {
	return c.chttp
}

func (c *Client) logf(format string, args ...interface{}) {
	if c == nil || c.logger == nil {
		log.Printf(format, args...)
		return
	}
	c.logger.Printf(format, args...)
}
