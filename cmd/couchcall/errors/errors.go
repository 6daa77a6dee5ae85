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

// Package errors assigns sysexits-style exit statuses to the failures of a
// couchcall command.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-kivik/couchcall"
)

// Exit statuses. Those below 64 describe the server's response; the rest
// follow sysexits(3).
const (
	// ErrUsage indicates an incorrect command, option, or unparseable
	// configuration.
	ErrUsage = 2
	// ErrUnknown indicates an HTTP status above 500, or one that is not an
	// error at all.
	ErrUnknown = 3
	// ErrInternalServerError indicates a 500 response.
	ErrInternalServerError = 4

	// 4xx responses exit with the status less clientErrorBase.
	clientErrorBase = 390

	ErrBadRequest           = http.StatusBadRequest - clientErrorBase           // 10
	ErrUnauthorized         = http.StatusUnauthorized - clientErrorBase         // 11
	ErrForbidden            = http.StatusForbidden - clientErrorBase            // 13
	ErrNotFound             = http.StatusNotFound - clientErrorBase             // 14
	ErrMethodNotAllowed     = http.StatusMethodNotAllowed - clientErrorBase     // 15
	ErrConflict             = http.StatusConflict - clientErrorBase             // 19
	ErrPreconditionFailed   = http.StatusPreconditionFailed - clientErrorBase   // 22
	ErrUnsupportedMediaType = http.StatusUnsupportedMediaType - clientErrorBase // 25

	// ErrData indicates invalid input data, such as malformed JSON or YAML.
	ErrData = 65
	// ErrNoInput indicates that an input file does not exist or cannot be read.
	ErrNoInput = 66
	// ErrUnavailable indicates that no response was received from the server.
	ErrUnavailable = 69
	// ErrSoftware indicates a failure of the tool itself.
	ErrSoftware = 70
	// ErrCantCreate indicates that an output file cannot be created.
	ErrCantCreate = 73
	// ErrIO indicates an I/O error while reading or writing a file.
	ErrIO = 74
	// ErrProtocol indicates a response that could not be understood.
	ErrProtocol = 76
)

// exitError carries an explicit exit status.
type exitError struct {
	err    error
	status int
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// New calls errors.New.
func New(text string) error {
	return errors.New(text)
}

// InspectErrorCode returns the exit status for err, or 0 if none can be
// determined. An explicit status set with Code wins over the status derived
// from a couchcall error.
func InspectErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.status
	}
	var ccErr *couchcall.Error
	if errors.As(err, &ccErr) {
		return fromClientError(ccErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ErrProtocol
	}
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return fromHTTPStatus(statusErr.HTTPStatus())
	}
	return 0
}

// fromClientError maps the failure kinds of the client. Transport failures
// and malformed responses both report 502, so the code tells them apart.
func fromClientError(err *couchcall.Error) int {
	switch err.Code {
	case couchcall.CodeTransport:
		return ErrUnavailable
	case couchcall.CodeBadResponse:
		return ErrProtocol
	}
	return fromHTTPStatus(err.Status)
}

func fromHTTPStatus(status int) int {
	switch {
	case status == http.StatusInternalServerError:
		return ErrInternalServerError
	case status >= 400 && status < 500:
		return status - clientErrorBase
	}
	return ErrUnknown
}

// HTTPStatus converts status to an exit status, and passes it to Code.
func HTTPStatus(status int, err ...interface{}) error {
	return Code(fromHTTPStatus(status), err...)
}

// Code returns an error with exit status code. A single error argument is
// wrapped; anything else is passed to fmt.Sprint.
//
// A single nil argument returns nil.
func Code(code int, err ...interface{}) error {
	if len(err) == 1 {
		switch e := err[0].(type) {
		case nil:
			return nil
		case error:
			return &exitError{err: e, status: code}
		}
	}
	return &exitError{err: errors.New(fmt.Sprint(err...)), status: code}
}

// Codef formats like fmt.Errorf, with exit status code.
func Codef(code int, format string, args ...interface{}) error {
	return &exitError{err: fmt.Errorf(format, args...), status: code}
}

// As calls errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is calls errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
