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
	"io"
	"net/http"
	"strings"
)

// transportFunc answers requests in place of the network.
type transportFunc func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = transportFunc(nil)

func (f transportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newCustomClient returns a client for dsn, default http://example.com/,
// whose requests are all answered by fn.
func newCustomClient(dsn string, fn transportFunc) *Client {
	if dsn == "" {
		dsn = "http://example.com/"
	}
	c, err := New(&http.Client{Transport: fn}, dsn)
	if err != nil {
		panic(err)
	}
	return c
}

// newTestClient returns a client which answers every request with res and
// err.
func newTestClient(res *http.Response, err error) *Client {
	return newCustomClient("", func(*http.Request) (*http.Response, error) {
		return res, err
	})
}

// Body returns str as a response body.
func Body(str string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(str))
}
