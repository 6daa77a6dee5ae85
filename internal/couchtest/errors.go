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

package couchtest

import (
	"net/http"

	"github.com/pkg/errors"
)

type couchError struct {
	status int
	Err    string `json:"error"`
	Reason string `json:"reason"`
}

func (e *couchError) Error() string {
	return e.Reason
}

func (e *couchError) HTTPStatus() int {
	return e.status
}

var (
	errConflict    = &couchError{status: http.StatusConflict, Err: "conflict", Reason: "Document update conflict."}
	errMissing     = &couchError{status: http.StatusNotFound, Err: "not_found", Reason: "missing"}
	errDeleted     = &couchError{status: http.StatusNotFound, Err: "not_found", Reason: "deleted"}
	errNoDBFile    = &couchError{status: http.StatusNotFound, Err: "not_found", Reason: "no_db_file"}
	errDBExists    = &couchError{status: http.StatusPreconditionFailed, Err: "file_exists", Reason: "The database could not be created, the file already exists."}
	errMissingView = &couchError{status: http.StatusNotFound, Err: "not_found", Reason: "missing_named_view"}
	errBadLogin    = &couchError{status: http.StatusUnauthorized, Err: "unauthorized", Reason: "Name or password is incorrect."}
)

func errBadRequest(reason string) error {
	return &couchError{status: http.StatusBadRequest, Err: "bad_request", Reason: reason}
}

func errQueryParse(reason string) error {
	return &couchError{status: http.StatusBadRequest, Err: "query_parse_error", Reason: reason}
}

func statusOf(err error) int {
	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		return status.HTTPStatus()
	}
	return http.StatusInternalServerError
}
