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
	"context"
	"net/http"
)

// BulkResult is the outcome of one document in a bulk write. Results are
// positionally aligned with the input documents.
type BulkResult struct {
	ID     string `json:"id"`
	Rev    string `json:"rev,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Err returns the failure of this document as an *Error, or nil if it was
// written.
func (r BulkResult) Err() error {
	if r.Error == "" {
		return nil
	}
	return &Error{
		Status: codeStatus(r.Error),
		Code:   r.Error,
		Reason: r.Reason,
	}
}

type bulkRequest struct {
	Docs         []Document `json:"docs"`
	AllOrNothing bool       `json:"all_or_nothing,omitempty"`
}

// BulkSave writes docs in a single request. Each document is written, or
// fails, independently, unless [AllOrNothing] is set, in which case
// conflicting writes create new branches instead of failing.
func (db *DB) BulkSave(ctx context.Context, docs []interface{}, options ...Option) ([]BulkResult, error) {
	payload := make([]Document, len(docs))
	for i, doc := range docs {
		d, err := toDocument(doc)
		if err != nil {
			return nil, err
		}
		payload[i] = d
	}
	return db.bulk(ctx, payload, options...)
}

// BulkRemove deletes docs in a single request. Every document must carry its
// _id and _rev.
func (db *DB) BulkRemove(ctx context.Context, docs []interface{}, options ...Option) ([]BulkResult, error) {
	payload := make([]Document, len(docs))
	for i, doc := range docs {
		d, err := toDocument(doc)
		if err != nil {
			return nil, err
		}
		if d.ID() == "" || d.Rev() == "" {
			return nil, badRequest("document %d: _id and _rev are required", i)
		}
		d["_deleted"] = true
		payload[i] = d
	}
	return db.bulk(ctx, payload, options...)
}

func (db *DB) bulk(ctx context.Context, docs []Document, options ...Option) ([]BulkResult, error) {
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	body := bulkRequest{
		Docs:         docs,
		AllOrNothing: o.allOrNothing,
	}
	var results []BulkResult
	if err := db.doJSON(ctx, http.MethodPost, db.path("_bulk_docs"), o.httpOptions(body), &results); err != nil {
		return nil, err
	}
	return results, nil
}
