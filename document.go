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
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/go-kivik/couchcall/chttp"
)

// Document is a JSON document, as stored by the server.
type Document map[string]interface{}

// ID returns the document's _id, or "" if it has none.
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// Rev returns the document's _rev, or "" if it has none.
func (d Document) Rev() string {
	rev, _ := d["_rev"].(string)
	return rev
}

// Deleted reports whether the document is a tombstone.
func (d Document) Deleted() bool {
	deleted, _ := d["_deleted"].(bool)
	return deleted
}

// Conflicts returns the losing revisions listed in _conflicts. It is only
// populated when the document was read with [Conflicts].
func (d Document) Conflicts() []string {
	raw, _ := d["_conflicts"].([]interface{})
	if len(raw) == 0 {
		return nil
	}
	revs := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			revs = append(revs, s)
		}
	}
	return revs
}

// Revisions is the revision history of a document.
type Revisions struct {
	// Start is the generation of the newest revision in IDs, which is also
	// the number of revisions written.
	Start int `json:"start" mapstructure:"start"`
	// IDs lists revision hashes, newest first.
	IDs []string `json:"ids" mapstructure:"ids"`
}

// Revs returns the full revision tokens of the history, newest first.
func (r *Revisions) Revs() []string {
	revs := make([]string, len(r.IDs))
	for i, id := range r.IDs {
		revs[i] = formatRev(r.Start-i, id)
	}
	return revs
}

// Revisions decodes the _revisions envelope. It returns nil if the document
// was not read with [Revs].
func (d Document) Revisions() (*Revisions, error) {
	raw, ok := d["_revisions"]
	if !ok {
		return nil, nil
	}
	var revs Revisions
	if err := mapstructure.Decode(raw, &revs); err != nil {
		return nil, &Error{Status: http.StatusBadGateway, Code: CodeBadResponse, Reason: err.Error(), Err: err}
	}
	return &revs, nil
}

func (d Document) clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// toDocument converts a caller-supplied document to a Document, without
// sharing the caller's top-level map.
func toDocument(doc interface{}) (Document, error) {
	switch t := doc.(type) {
	case nil:
		return nil, badRequest("document required")
	case Document:
		return t.clone(), nil
	case map[string]interface{}:
		return Document(t).clone(), nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, badRequest("invalid document: %s", err)
	}
	var d Document
	if err := json.Unmarshal(body, &d); err != nil || d == nil {
		return nil, badRequest("document must be a JSON object")
	}
	return d, nil
}

// DocResult is the outcome of a document write.
type DocResult struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`

	// Doc is a copy of the written document, carrying the new _id and _rev.
	Doc Document `json:"-"`
}

// OpenDoc fetches a document. If it does not exist, the error has status 404
// and reason "missing"; if its current revision is deleted, the reason is
// "deleted" (see [IsDeleted]).
//
// Options include [Rev], [Revs], [Conflicts], and arbitrary [Params].
func (db *DB) OpenDoc(ctx context.Context, docID string, options ...Option) (Document, error) {
	if docID == "" {
		return nil, badRequest("document ID required")
	}
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	var doc Document
	if err := db.doJSON(ctx, http.MethodGet, db.path(chttp.EncodeDocID(docID)), o.httpOptions(nil), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveDoc creates or updates a document. doc may be a [Document], a map, or
// any value which marshals to a JSON object. If doc has no _id, the server
// assigns one.
//
// Updating an existing document requires its current _rev; otherwise the
// error has status 409 and code "conflict".
func (db *DB) SaveDoc(ctx context.Context, doc interface{}, options ...Option) (*DocResult, error) {
	d, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	method, path := http.MethodPut, db.path(chttp.EncodeDocID(d.ID()))
	if d.ID() == "" {
		method, path = http.MethodPost, db.path()
	}
	var result DocResult
	if err := db.doJSON(ctx, method, path, o.httpOptions(d), &result); err != nil {
		return nil, err
	}
	d["_id"] = result.ID
	d["_rev"] = result.Rev
	result.Doc = d
	return &result, nil
}

// RemoveDoc deletes a document, which must carry its _id and current _rev.
// The returned revision is that of the tombstone, which remains readable with
// [Rev].
func (db *DB) RemoveDoc(ctx context.Context, doc interface{}) (*DocResult, error) {
	d, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	if d.ID() == "" || d.Rev() == "" {
		return nil, badRequest("document _id and _rev are required")
	}
	opts := &chttp.Options{Query: map[string][]string{"rev": {d.Rev()}}}
	var result DocResult
	if err := db.doJSON(ctx, http.MethodDelete, db.path(chttp.EncodeDocID(d.ID())), opts, &result); err != nil {
		return nil, err
	}
	result.Doc = Document{
		"_id":      result.ID,
		"_rev":     result.Rev,
		"_deleted": true,
	}
	return &result, nil
}

// CopyDoc copies the current revision of sourceID to destID. If destID
// exists, its current revision must be passed with [Rev], or the error has
// status 409.
func (db *DB) CopyDoc(ctx context.Context, sourceID, destID string, options ...Option) (*DocResult, error) {
	if sourceID == "" {
		return nil, badRequest("source document ID required")
	}
	if destID == "" {
		return nil, badRequest("destination document ID required")
	}
	o := newRequestOptions(options...)
	if o.err != nil {
		return nil, o.err
	}
	dest := destID
	if rev := o.query.Get("rev"); rev != "" {
		// The destination revision belongs in the Destination header, not
		// the query string, which would select a source revision.
		o.query.Del("rev")
		dest += "?rev=" + rev
	}
	opts := o.httpOptions(nil)
	if opts.Header == nil {
		opts.Header = http.Header{}
	}
	opts.Header.Set(chttp.HeaderDestination, dest)
	var result DocResult
	if err := db.doJSON(ctx, "COPY", db.path(chttp.EncodeDocID(sourceID)), opts, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func formatRev(gen int, id string) string {
	return strconv.Itoa(gen) + "-" + id
}
