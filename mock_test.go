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
	"io"
	"net/http"
	"strings"
	"testing"
)

type customTransport func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = customTransport(nil)

func (c customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c(req)
}

// capturedRequest is the part of a request the tests inspect.
type capturedRequest struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	Destination string
	Body        string
}

// newTestClient returns a client whose requests are recorded in the returned
// value, and answered with status and body.
func newTestClient(t *testing.T, status int, body string) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	transport := customTransport(func(req *http.Request) (*http.Response, error) {
		*captured = capturedRequest{
			Method:      req.Method,
			Path:        req.URL.EscapedPath(),
			Query:       req.URL.RawQuery,
			ContentType: req.Header.Get("Content-Type"),
			Destination: req.Header.Get("Destination"),
		}
		if req.Body != nil {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			captured.Body = strings.TrimSpace(string(b))
		}
		return &http.Response{
			StatusCode:    status,
			Header:        http.Header{"Content-Type": {"application/json"}},
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: int64(len(body)),
			Request:       req,
		}, nil
	})
	c, err := New("http://example.com/", OptionHTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		t.Fatal(err)
	}
	return c, captured
}
