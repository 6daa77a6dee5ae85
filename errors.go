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
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/couchcall/chttp"
)

// Error codes assigned by the client rather than the server.
const (
	// CodeTransport is the code of errors where no response was received.
	CodeTransport = "transport_error"
	// CodeBadResponse is the code of errors where a successful response could
	// not be decoded.
	CodeBadResponse = "bad_response"
	// CodeBadRequest is the code of requests rejected before being sent.
	CodeBadRequest = "bad_request"
)

// Error is the failure outcome of an operation.
type Error struct {
	// Status is the HTTP status of the response. Transport failures and
	// malformed responses report 502 Bad Gateway.
	Status int

	// Code is the short error code, such as "not_found" or "conflict".
	Code string

	// Reason is the human-readable reason, such as "missing" or "deleted".
	Reason string

	// Err is the underlying error, if any.
	Err error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Code
}

// HTTPStatus returns the HTTP status code of the failure.
func (e *Error) HTTPStatus() int {
	return e.Status
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...interface{}) *Error {
	return &Error{
		Status: http.StatusBadRequest,
		Code:   CodeBadRequest,
		Reason: fmt.Sprintf(format, args...),
	}
}

// convertError translates dispatcher errors into *Error.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var (
		e         *Error
		httpErr   *chttp.HTTPError
		decodeErr *chttp.DecodeError
		transErr  *chttp.TransportError
	)
	switch {
	case errors.As(err, &e):
		return e
	case errors.As(err, &httpErr):
		return &Error{
			Status: httpErr.HTTPStatus(),
			Code:   httpErr.Code,
			Reason: httpErr.Reason,
			Err:    err,
		}
	case errors.As(err, &decodeErr):
		return &Error{
			Status: http.StatusBadGateway,
			Code:   CodeBadResponse,
			Reason: decodeErr.Error(),
			Err:    err,
		}
	case errors.As(err, &transErr):
		code := CodeTransport
		if transErr.Status != http.StatusBadGateway {
			code = chttp.StatusCode(transErr.Status)
		}
		return &Error{
			Status: transErr.Status,
			Code:   code,
			Reason: transErr.Error(),
			Err:    err,
		}
	}
	return &Error{
		Status: http.StatusInternalServerError,
		Code:   chttp.StatusCode(http.StatusInternalServerError),
		Reason: err.Error(),
		Err:    err,
	}
}

// HTTPStatus returns the HTTP status code embedded in err, 0 if err is nil, or
// 500 if err carries no status.
func HTTPStatus(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ HTTPStatus() int }
	if errors.As(err, &coder) {
		return coder.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsNotFound reports whether err is a 404 Not Found failure, whether the
// document is missing or deleted.
func IsNotFound(err error) bool {
	return HTTPStatus(err) == http.StatusNotFound
}

// IsDeleted reports whether err reports a document whose current revision is
// a tombstone.
func IsDeleted(err error) bool {
	return IsNotFound(err) && reason(err) == "deleted"
}

// IsConflict reports whether err is a 409 Conflict failure.
func IsConflict(err error) bool {
	return HTTPStatus(err) == http.StatusConflict
}

// IsPreconditionFailed reports whether err is a 412 Precondition Failed
// failure, such as creating a database which already exists.
func IsPreconditionFailed(err error) bool {
	return HTTPStatus(err) == http.StatusPreconditionFailed
}

// IsTransport reports whether err is a failure to obtain any response from
// the server.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeTransport
}

// codeStatus maps the error codes reported per document by _bulk_docs to an
// HTTP status.
func codeStatus(code string) int {
	switch code {
	case "conflict":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "unauthorized":
		return http.StatusUnauthorized
	case "not_found":
		return http.StatusNotFound
	case "bad_request":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
