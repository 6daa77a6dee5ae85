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

// DB is a handle to a single database. Constructing a DB makes no request.
type DB struct {
	client *Client
	name   string
}

// Name returns the database name, exactly as passed to [Client.DB].
func (db *DB) Name() string {
	return db.name
}

// URI returns the fully qualified address of the database, with a trailing
// slash.
func (db *DB) URI() string {
	return db.client.prefix + "/" + chttp.EncodeDBName(db.name) + "/"
}

// Client returns the client which created db.
func (db *DB) Client() *Client {
	return db.client
}

// path returns the server-relative path of the database, joined with parts,
// which must already be escaped.
func (db *DB) path(parts ...string) string {
	return "/" + strings.Join(append([]string{chttp.EncodeDBName(db.name)}, parts...), "/")
}

// resourcePath is path, prefixed with the base path of the server URL, for
// use in links handed back to the caller.
func (db *DB) resourcePath(parts ...string) string {
	return strings.TrimSuffix(db.client.chttp.URL().Path, "/") + db.path(parts...)
}

func (db *DB) doJSON(ctx context.Context, method, path string, opts *chttp.Options, i interface{}) error {
	return convertError(db.client.chttp.DoJSON(ctx, method, path, opts, i))
}

// Ack is the acknowledgement returned by operations with no other result.
type Ack struct {
	OK bool `json:"ok"`
}

func (db *DB) ack(ctx context.Context, method, path string, opts *chttp.Options) (*Ack, error) {
	var ack Ack
	if err := db.doJSON(ctx, method, path, opts, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Create creates the database. If it already exists, the error has status
// 412 and code "file_exists".
func (db *DB) Create(ctx context.Context, options ...Option) (*Ack, error) {
	o := newRequestOptions(options...)
	return db.ack(ctx, http.MethodPut, db.path(), o.httpOptions(nil))
}

// Drop deletes the database. If it does not exist, the error has status 404,
// code "not_found", and reason "missing".
func (db *DB) Drop(ctx context.Context) (*Ack, error) {
	return db.ack(ctx, http.MethodDelete, db.path(), nil)
}

// Sequence is an update sequence. CouchDB 1.x reports sequences as numbers,
// later versions as opaque strings; both are stored in their JSON text form,
// without quotes.
type Sequence string

// UnmarshalJSON accepts a JSON string or number.
func (s *Sequence) UnmarshalJSON(p []byte) error {
	if len(p) > 0 && p[0] == '"' {
		var str string
		if err := json.Unmarshal(p, &str); err != nil {
			return err
		}
		*s = Sequence(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(p, &n); err != nil {
		return err
	}
	*s = Sequence(n)
	return nil
}

// DBInfo is the metadata of a database.
type DBInfo struct {
	Name           string   `json:"db_name"`
	DocCount       int64    `json:"doc_count"`
	DeletedCount   int64    `json:"doc_del_count"`
	UpdateSeq      Sequence `json:"update_seq"`
	DiskSize       int64    `json:"disk_size,omitempty"`
	CompactRunning bool     `json:"compact_running"`
	// InstanceStartTime is opaque, and is not interpreted.
	InstanceStartTime string `json:"instance_start_time"`
}

// Info returns the database metadata.
func (db *DB) Info(ctx context.Context) (*DBInfo, error) {
	var info DBInfo
	if err := db.doJSON(ctx, http.MethodGet, db.path(), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Compact starts compaction of the database. Compaction continues on the
// server after the acknowledgement is returned.
func (db *DB) Compact(ctx context.Context) (*Ack, error) {
	return db.ack(ctx, http.MethodPost, db.path("_compact"), nil)
}

// ViewCleanup removes index files no longer required by any design document.
func (db *DB) ViewCleanup(ctx context.Context) (*Ack, error) {
	return db.ack(ctx, http.MethodPost, db.path("_view_cleanup"), nil)
}

// CompactView starts compaction of the views of one design document. ddoc
// may be given with or without the _design/ prefix.
func (db *DB) CompactView(ctx context.Context, ddoc string) (*Ack, error) {
	ddoc = strings.TrimPrefix(strings.TrimPrefix(ddoc, "/"), "_design/")
	if ddoc == "" {
		return nil, badRequest("design document name required")
	}
	return db.ack(ctx, http.MethodPost, db.path("_compact", chttp.EncodeDocID(ddoc)), nil)
}

// SetDBProperty sets a database-level property, such as "_revs_limit", to
// value.
func (db *DB) SetDBProperty(ctx context.Context, name string, value interface{}) (*Ack, error) {
	if name == "" {
		return nil, badRequest("property name required")
	}
	body, err := json.Marshal(value)
	if err != nil {
		return nil, badRequest("invalid property value: %s", err)
	}
	return db.ack(ctx, http.MethodPut, db.path(chttp.EncodeDocID(name)), &chttp.Options{
		GetBody: chttp.BodyEncoder(json.RawMessage(body)),
	})
}

// GetDBProperty decodes the named database-level property into dst. If the
// property was never set, the error has status 404.
func (db *DB) GetDBProperty(ctx context.Context, name string, dst interface{}) error {
	if name == "" {
		return badRequest("property name required")
	}
	return db.doJSON(ctx, http.MethodGet, db.path(chttp.EncodeDocID(name)), nil, dst)
}
