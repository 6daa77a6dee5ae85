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
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// HTTPError is an error returned by the server with a non-2xx status.
type HTTPError struct {
	// Response is the HTTP response received by the client.  The response body
	// should already be closed, but the response and request headers and other
	// metadata will typically be in tact for debugging purposes.
	Response *http.Response `json:"-"`

	// Code is the server-supplied short error code, such as "not_found".
	Code string `json:"error"`

	// Reason is the server-supplied error reason.
	Reason string `json:"reason"`
}

func (e *HTTPError) Error() string {
	if e.Reason == "" {
		return http.StatusText(e.HTTPStatus())
	}
	if statusText := http.StatusText(e.HTTPStatus()); statusText != "" {
		return fmt.Sprintf("%s: %s", statusText, e.Reason)
	}
	return e.Reason
}

// HTTPStatus returns the embedded status code.
func (e *HTTPError) HTTPStatus() int {
	return e.Response.StatusCode
}

// ResponseError returns an error from an *http.Response if the status code
// indicates an error.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode < 400 { // nolint:gomnd
		return nil
	}
	if resp.Body != nil {
		defer CloseBody(resp.Body)
	}
	httpErr := &HTTPError{
		Response: resp,
	}
	if resp.Request != nil && resp.Request.Method != http.MethodHead && resp.ContentLength != 0 && resp.Body != nil {
		if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == typeJSON {
			_ = json.NewDecoder(resp.Body).Decode(httpErr)
		}
	}
	if httpErr.Code == "" {
		httpErr.Code = StatusCode(resp.StatusCode)
	}
	return httpErr
}

// StatusCode converts an HTTP status to the snake_case error code CouchDB
// would use for it, e.g. 404 becomes "not_found".
func StatusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// TransportError is returned when no usable HTTP response was received, such
// as when the connection is refused, or the request could not be built.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns the status code associated with the failure.
func (e *TransportError) HTTPStatus() int {
	return e.Status
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response with a successful status could not
// be decoded.
type DecodeError struct {
	// Status is the status code of the undecodable response.
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response (status %d): %s", e.Status, e.Err)
}

// HTTPStatus returns [net/http.StatusBadGateway].
func (e *DecodeError) HTTPStatus() int {
	return http.StatusBadGateway
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
