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
	"gitlab.com/flimzy/httpe"
)

type bulkResult struct {
	OK     bool   `json:"ok,omitempty"`
	ID     string `json:"id"`
	Rev    string `json:"rev,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) bulkDocs() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Docs         []map[string]interface{} `json:"docs"`
			AllOrNothing bool                     `json:"all_or_nothing"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.Docs == nil {
			return errBadRequest("POST body must include `docs` parameter.")
		}
		return s.withDB(r, true, func(db *database) error {
			results := make([]bulkResult, 0, len(req.Docs))
			for _, doc := range req.Docs {
				results = append(results, db.bulkUpdate(doc, req.AllOrNothing))
			}
			return serveJSON(w, http.StatusCreated, results)
		})
	})
}

// bulkUpdate applies a single _bulk_docs entry. Failures are reported in
// the result rather than aborting the batch.
func (db *database) bulkUpdate(doc map[string]interface{}, allOrNothing bool) bulkResult {
	if doc == nil {
		return bulkResult{Error: "bad_request", Reason: "Document must be a JSON object"}
	}
	id, _ := doc["_id"].(string)
	if id == "" {
		id = newUUID()
	}
	rev, err := db.update(id, doc, allOrNothing)
	if err != nil {
		ce := &couchError{}
		if !errors.As(err, &ce) {
			ce = &couchError{Err: "unknown_error", Reason: err.Error()}
		}
		return bulkResult{ID: id, Error: ce.Err, Reason: ce.Reason}
	}
	return bulkResult{OK: true, ID: id, Rev: rev.String()}
}
