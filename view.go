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
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-kivik/couchcall/chttp"
)

// ViewResult is the result of a view, temporary view, or _all_docs query.
type ViewResult struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int64 `json:"offset"`
	Rows      []Row `json:"rows"`
}

// Row is a single view row. Key, Value, and Doc hold raw JSON.
type Row struct {
	ID    string          `json:"id,omitempty"`
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	Doc   json.RawMessage `json:"doc,omitempty"`
	// Error is set for a requested key which matched no document.
	Error string `json:"error,omitempty"`
}

// ScanKey decodes the row key into dst.
func (r Row) ScanKey(dst interface{}) error {
	return scan(r.Key, dst)
}

// ScanValue decodes the row value into dst.
func (r Row) ScanValue(dst interface{}) error {
	return scan(r.Value, dst)
}

// ScanDoc decodes the included document into dst. The query must have been
// made with [IncludeDocs].
func (r Row) ScanDoc(dst interface{}) error {
	return scan(r.Doc, dst)
}

func scan(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Status: http.StatusBadGateway, Code: CodeBadResponse, Reason: err.Error(), Err: err}
	}
	return nil
}

type tempView struct {
	Language string         `json:"language"`
	Map      string         `json:"map"`
	Reduce   string         `json:"reduce,omitempty"`
	// Keys is nil unless keys were given. An empty set selects no rows.
	Keys     *[]interface{} `json:"keys,omitempty"`
}

// Query runs a temporary view. reduceFn may be empty. If language is empty,
// "javascript" is assumed.
//
// Temporary views were removed in CouchDB 2.0; they are served by 1.x and
// compatible servers.
func (db *DB) Query(ctx context.Context, mapFn, reduceFn, language string, options ...Option) (*ViewResult, error) {
	if mapFn == "" {
		return nil, badRequest("map function required")
	}
	if language == "" {
		language = "javascript"
	}
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	body := tempView{
		Language: language,
		Map:      mapFn,
		Reduce:   reduceFn,
	}
	if o.hasKeys {
		keys := o.keys
		if keys == nil {
			keys = []interface{}{}
		}
		body.Keys = &keys
	}
	return db.rows(ctx, http.MethodPost, db.path("_temp_view"), o.httpOptions(body))
}

// View queries a view stored in a design document. path has the form
// "ddoc/view", where the _design/ prefix of ddoc is optional. If the view
// does not exist, the error has status 404 and reason "missing_named_view".
func (db *DB) View(ctx context.Context, path string, options ...Option) (*ViewResult, error) {
	ddoc, view, ok := splitViewPath(path)
	if !ok {
		return nil, badRequest("invalid view path %q; expected ddoc/view", path)
	}
	return db.rowsQuery(ctx, db.path("_design", chttp.EncodeDocID(ddoc), "_view", chttp.EncodeDocID(view)), options...)
}

func splitViewPath(path string) (ddoc, view string, ok bool) {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "/"), "_design/")
	ddoc, view, ok = strings.Cut(path, "/")
	if !ok || ddoc == "" || view == "" || strings.Contains(view, "/") {
		return "", "", false
	}
	return ddoc, view, true
}

// AllDocs queries the built-in _all_docs view, which has one row per
// document, keyed by ID.
func (db *DB) AllDocs(ctx context.Context, options ...Option) (*ViewResult, error) {
	return db.rowsQuery(ctx, db.path("_all_docs"), options...)
}

// AllDesignDocs is [DB.AllDocs], restricted to design documents. TotalRows
// still counts every document in the database.
func (db *DB) AllDesignDocs(ctx context.Context, options ...Option) (*ViewResult, error) {
	options = append(options, StartKey("_design"), EndKey("_design0"))
	return db.rowsQuery(ctx, db.path("_all_docs"), options...)
}

// rowsQuery queries a view with GET, or with POST when keys are given.
func (db *DB) rowsQuery(ctx context.Context, path string, options ...Option) (*ViewResult, error) {
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	if !o.hasKeys {
		return db.rows(ctx, http.MethodGet, path, o.httpOptions(nil))
	}
	body := map[string]interface{}{"keys": o.keys}
	return db.rows(ctx, http.MethodPost, path, o.httpOptions(body))
}

func (db *DB) rows(ctx context.Context, method, path string, opts *chttp.Options) (*ViewResult, error) {
	var result ViewResult
	if err := db.doJSON(ctx, method, path, opts, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
