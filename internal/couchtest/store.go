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
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultRevsLimit = 1000

var validDBName = regexp.MustCompile(`^[a-z][a-z0-9_$()+/-]*$`)

type database struct {
	name    string
	seq     int64
	created time.Time
	docs    map[string]*document
	props   map[string]json.RawMessage
}

func newDatabase(name string) *database {
	return &database{
		name:    name,
		created: time.Now(),
		docs:    make(map[string]*document),
		props: map[string]json.RawMessage{
			"_revs_limit": json.RawMessage(strconv.Itoa(defaultRevsLimit)),
			"_security":   json.RawMessage(`{}`),
		},
	}
}

// revision is a single node in a document's revision tree.
type revision struct {
	gen     int
	hash    string
	parent  *revision
	deleted bool
	body    map[string]interface{}
	// attachment content, by name
	data      map[string][]byte
	compacted bool
}

func (r *revision) String() string {
	return strconv.Itoa(r.gen) + "-" + r.hash
}

// history returns the revision hashes from r back to the root, newest first.
func (r *revision) history() []string {
	var ids []string
	for rev := r; rev != nil; rev = rev.parent {
		ids = append(ids, rev.hash)
	}
	return ids
}

type document struct {
	id   string
	seq  int64
	revs map[string]*revision
}

// leaves returns the leaf revisions, ordered so that the winning revision is
// first: live before deleted, then by generation, then by hash.
func (d *document) leaves() []*revision {
	parents := make(map[*revision]bool, len(d.revs))
	for _, r := range d.revs {
		if r.parent != nil {
			parents[r.parent] = true
		}
	}
	leaves := make([]*revision, 0, len(d.revs))
	for _, r := range d.revs {
		if !parents[r] {
			leaves = append(leaves, r)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		a, b := leaves[i], leaves[j]
		if a.deleted != b.deleted {
			return !a.deleted
		}
		if a.gen != b.gen {
			return a.gen > b.gen
		}
		return a.hash > b.hash
	})
	return leaves
}

func (d *document) winner() *revision {
	if d == nil {
		return nil
	}
	if leaves := d.leaves(); len(leaves) > 0 {
		return leaves[0]
	}
	return nil
}

// conflicts returns the live leaves which lost to the winner.
func (d *document) conflicts() []string {
	var revs []string
	for _, r := range d.leaves()[1:] {
		if !r.deleted {
			revs = append(revs, r.String())
		}
	}
	return revs
}

func (d *document) isLeaf(r *revision) bool {
	for _, other := range d.revs {
		if other.parent == r {
			return false
		}
	}
	return true
}

// live returns the winning revision, or nil if the document does not exist
// or has been deleted.
func (d *document) live() *revision {
	if w := d.winner(); w != nil && !w.deleted {
		return w
	}
	return nil
}

func (db *database) revsLimit() int {
	var limit int
	if err := json.Unmarshal(db.props["_revs_limit"], &limit); err != nil || limit < 1 {
		return defaultRevsLimit
	}
	return limit
}

func (db *database) counts() (live, deleted int) {
	for id, d := range db.docs {
		if strings.HasPrefix(id, "_local/") {
			continue
		}
		if d.live() != nil {
			live++
		} else {
			deleted++
		}
	}
	return live, deleted
}

// update stores a new revision of the document id. With force set, as for
// all_or_nothing bulk updates, the edit never conflicts: it extends the named
// revision wherever it is in the tree, or starts a new branch.
func (db *database) update(id string, doc map[string]interface{}, force bool) (*revision, error) {
	if err := validateDocID(id); err != nil {
		return nil, err
	}
	rev, _ := doc["_rev"].(string)
	deleted, _ := doc["_deleted"].(bool)
	body, err := userFields(doc)
	if err != nil {
		return nil, err
	}
	d := db.docs[id]
	if d == nil {
		d = &document{id: id, revs: make(map[string]*revision)}
	}
	parent, err := d.parentFor(rev, force)
	if err != nil {
		return nil, err
	}
	r := &revision{
		parent:  parent,
		gen:     1,
		deleted: deleted,
		body:    body,
	}
	if parent != nil {
		r.gen = parent.gen + 1
	}
	if err := r.storeAttachments(); err != nil {
		return nil, err
	}
	r.hash, err = revHash(parent, deleted, body)
	if err != nil {
		return nil, err
	}
	if existing, ok := d.revs[r.String()]; ok {
		return existing, nil
	}
	db.seq++
	d.seq = db.seq
	d.revs[r.String()] = r
	db.docs[id] = d
	return r, nil
}

func (d *document) parentFor(rev string, force bool) (*revision, error) {
	if force {
		return d.revs[rev], nil
	}
	if rev == "" {
		w := d.winner()
		if w == nil || w.deleted {
			return w, nil
		}
		return nil, errConflict
	}
	r, ok := d.revs[rev]
	if !ok || !d.isLeaf(r) {
		return nil, errConflict
	}
	return r, nil
}

func validateDocID(id string) error {
	if id == "" {
		return errBadRequest("Document id must not be empty")
	}
	if strings.HasPrefix(id, "_") && !strings.HasPrefix(id, "_design/") && !strings.HasPrefix(id, "_local/") {
		return errBadRequest("Only reserved document ids may start with underscore.")
	}
	return nil
}

// ignoredFields are accepted on input but never stored.
var ignoredFields = map[string]bool{
	"_id":                true,
	"_rev":               true,
	"_deleted":           true,
	"_revisions":         true,
	"_conflicts":         true,
	"_deleted_conflicts": true,
	"_local_seq":         true,
	"_revs_info":         true,
}

func userFields(doc map[string]interface{}) (map[string]interface{}, error) {
	body := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch {
		case ignoredFields[k]:
			continue
		case k == "_attachments":
		case strings.HasPrefix(k, "_"):
			return nil, &couchError{status: http.StatusBadRequest, Err: "doc_validation", Reason: "Bad special document member: " + k}
		}
		body[k] = v
	}
	return body, nil
}

// storeAttachments replaces inline attachment data with stubs, and resolves
// stubs against the parent revision.
func (r *revision) storeAttachments() error {
	raw, ok := r.body["_attachments"]
	if !ok {
		return nil
	}
	atts, ok := raw.(map[string]interface{})
	if !ok {
		return errBadRequest("_attachments must be an object")
	}
	stubs := make(map[string]interface{}, len(atts))
	r.data = make(map[string][]byte, len(atts))
	for name, a := range atts {
		att, ok := a.(map[string]interface{})
		if !ok {
			return errBadRequest("invalid attachment " + name)
		}
		if stub, _ := att["stub"].(bool); stub {
			prev, data, ok := r.parentAttachment(name)
			if !ok {
				return &couchError{status: http.StatusPreconditionFailed, Err: "missing_stub", Reason: "Invalid attachment stub in " + name}
			}
			stubs[name] = prev
			r.data[name] = data
			continue
		}
		encoded, _ := att["data"].(string)
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return errBadRequest("Invalid attachment data for " + name)
		}
		sum := md5.Sum(data)
		contentType, _ := att["content_type"].(string)
		stubs[name] = map[string]interface{}{
			"content_type": contentType,
			"revpos":       float64(r.gen),
			"digest":       "md5-" + base64.StdEncoding.EncodeToString(sum[:]),
			"length":       float64(len(data)),
			"stub":         true,
		}
		r.data[name] = data
	}
	r.body["_attachments"] = stubs
	return nil
}

func (r *revision) parentAttachment(name string) (interface{}, []byte, bool) {
	if r.parent == nil {
		return nil, nil, false
	}
	atts, _ := r.parent.body["_attachments"].(map[string]interface{})
	stub, ok := atts[name]
	if !ok {
		return nil, nil, false
	}
	return stub, r.parent.data[name], true
}

func revHash(parent *revision, deleted bool, body map[string]interface{}) (string, error) {
	var parentRev string
	if parent != nil {
		parentRev = parent.String()
	}
	// encoding/json sorts map keys, so equal edits hash equally.
	buf, err := json.Marshal([]interface{}{parentRev, deleted, body})
	if err != nil {
		return "", errors.Wrap(err, "hash revision")
	}
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}

// docOptions selects the extra members included by render.
type docOptions struct {
	revs      bool
	conflicts bool
	revsLimit int
}

// render returns the JSON form of revision r of document d.
func (d *document) render(r *revision, opts docOptions) map[string]interface{} {
	out := make(map[string]interface{}, len(r.body)+4)
	for k, v := range r.body {
		out[k] = v
	}
	out["_id"] = d.id
	out["_rev"] = r.String()
	if r.deleted {
		out["_deleted"] = true
	}
	if opts.revs {
		ids := r.history()
		if opts.revsLimit > 0 && len(ids) > opts.revsLimit {
			ids = ids[:opts.revsLimit]
		}
		out["_revisions"] = map[string]interface{}{
			"start": r.gen,
			"ids":   ids,
		}
	}
	if opts.conflicts {
		if c := d.conflicts(); len(c) > 0 {
			out["_conflicts"] = c
		}
	}
	return out
}

// lookup returns the requested revision of id, or the winner when rev is
// empty.
func (db *database) lookup(id, rev string) (*document, *revision, error) {
	d := db.docs[id]
	if d == nil {
		return nil, nil, errMissing
	}
	if rev != "" {
		r, ok := d.revs[rev]
		if !ok || r.compacted {
			return nil, nil, errMissing
		}
		return d, r, nil
	}
	w := d.winner()
	if w.deleted {
		return nil, nil, errDeleted
	}
	return d, w, nil
}

func (db *database) info() map[string]interface{} {
	live, deleted := db.counts()
	var size int
	for _, d := range db.docs {
		for _, r := range d.revs {
			b, _ := json.Marshal(r.body)
			size += len(b)
		}
	}
	return map[string]interface{}{
		"db_name":              db.name,
		"doc_count":            live,
		"doc_del_count":        deleted,
		"update_seq":           db.seq,
		"committed_update_seq": db.seq,
		"purge_seq":            0,
		"compact_running":      false,
		"disk_size":            size,
		"data_size":            size,
		"disk_format_version":  6,
		"instance_start_time":  fmt.Sprintf("%d", db.created.UnixMicro()),
	}
}
