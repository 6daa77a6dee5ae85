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
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gitlab.com/flimzy/httpe"
)

// idFunc extracts a document ID from the request path.
type idFunc func(*http.Request) string

func plainID(r *http.Request) string  { return param(r, "docid") }
func designID(r *http.Request) string { return "_design/" + param(r, "ddoc") }
func localID(r *http.Request) string  { return "_local/" + param(r, "docid") }

type updateResult struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errQueryParse("Invalid boolean parameter: \"" + v + "\"")
	}
	return b, nil
}

func (s *Server) getDoc(docID idFunc) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		id := docID(r)
		if isProperty(id) {
			return s.getProperty(w, r, id)
		}
		q := r.URL.Query()
		revs, err := boolParam(q, "revs")
		if err != nil {
			return err
		}
		conflicts, err := boolParam(q, "conflicts")
		if err != nil {
			return err
		}
		return s.withDB(r, false, func(db *database) error {
			d, rev, err := db.lookup(id, q.Get("rev"))
			if err != nil {
				return err
			}
			w.Header().Set("ETag", `"`+rev.String()+`"`)
			return serveJSON(w, http.StatusOK, d.render(rev, docOptions{
				revs:      revs,
				conflicts: conflicts,
				revsLimit: db.revsLimit(),
			}))
		})
	})
}

func (s *Server) putDoc(docID idFunc) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		id := docID(r)
		if isProperty(id) {
			return s.putProperty(w, r, id)
		}
		var doc map[string]interface{}
		if err := decodeJSON(r, &doc); err != nil {
			return err
		}
		if doc == nil {
			return errBadRequest("Document must be a JSON object")
		}
		if rev := r.URL.Query().Get("rev"); rev != "" {
			doc["_rev"] = rev
		}
		return s.write(w, r, id, doc)
	})
}

func (s *Server) postDoc() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var doc map[string]interface{}
		if err := decodeJSON(r, &doc); err != nil {
			return err
		}
		if doc == nil {
			return errBadRequest("Document must be a JSON object")
		}
		id, _ := doc["_id"].(string)
		if id == "" {
			id = newUUID()
		}
		return s.write(w, r, id, doc)
	})
}

func (s *Server) deleteDoc(docID idFunc) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		rev := r.URL.Query().Get("rev")
		if rev == "" {
			rev = strings.Trim(r.Header.Get("If-Match"), `"`)
		}
		if rev == "" {
			return errConflict
		}
		return s.write(w, r, docID(r), map[string]interface{}{
			"_rev":     rev,
			"_deleted": true,
		})
	})
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, id string, doc map[string]interface{}) error {
	return s.withDB(r, true, func(db *database) error {
		rev, err := db.update(id, doc, false)
		if err != nil {
			return err
		}
		w.Header().Set("ETag", `"`+rev.String()+`"`)
		return serveJSON(w, http.StatusCreated, updateResult{OK: true, ID: id, Rev: rev.String()})
	})
}

// parseDestination splits a COPY Destination header into the target ID and
// the optional revision to overwrite.
func parseDestination(dest string) (id, rev string, err error) {
	if dest == "" {
		return "", "", errBadRequest("Destination header is mandatory for COPY.")
	}
	path, query, _ := strings.Cut(dest, "?")
	id, err = url.PathUnescape(path)
	if err != nil {
		return "", "", errBadRequest("Invalid Destination header")
	}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return "", "", errBadRequest("Invalid Destination header")
		}
		rev = values.Get("rev")
	}
	return id, rev, nil
}

func (s *Server) copyDoc(docID idFunc) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		destID, destRev, err := parseDestination(r.Header.Get("Destination"))
		if err != nil {
			return err
		}
		return s.withDB(r, true, func(db *database) error {
			_, src, err := db.lookup(docID(r), r.URL.Query().Get("rev"))
			if err != nil {
				return err
			}
			if src.deleted {
				return errDeleted
			}
			doc := make(map[string]interface{}, len(src.body)+1)
			for k, v := range src.body {
				doc[k] = v
			}
			if destRev != "" {
				doc["_rev"] = destRev
			}
			if atts, ok := doc["_attachments"].(map[string]interface{}); ok {
				doc["_attachments"] = copyAttachments(atts, src.data)
			}
			rev, err := db.update(destID, doc, false)
			if err != nil {
				return err
			}
			return serveJSON(w, http.StatusCreated, updateResult{OK: true, ID: destID, Rev: rev.String()})
		})
	})
}

// copyAttachments inlines the source attachments, since stubs cannot be
// resolved against another document's history.
func copyAttachments(stubs map[string]interface{}, data map[string][]byte) map[string]interface{} {
	out := make(map[string]interface{}, len(stubs))
	for name, stub := range stubs {
		m, _ := stub.(map[string]interface{})
		out[name] = map[string]interface{}{
			"content_type": m["content_type"],
			"data":         base64.StdEncoding.EncodeToString(data[name]),
		}
	}
	return out
}

func (s *Server) attachment(docID idFunc) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		name := param(r, "attname")
		return s.withDB(r, false, func(db *database) error {
			_, rev, err := db.lookup(docID(r), r.URL.Query().Get("rev"))
			if err != nil {
				return err
			}
			data, ok := rev.data[name]
			if !ok {
				return &couchError{status: http.StatusNotFound, Err: "not_found", Reason: "Document is missing attachment"}
			}
			atts, _ := rev.body["_attachments"].(map[string]interface{})
			stub, _ := atts[name].(map[string]interface{})
			if ct, _ := stub["content_type"].(string); ct != "" {
				w.Header().Set("Content-Type", ct)
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			_, err = w.Write(data)
			return err
		})
	})
}
