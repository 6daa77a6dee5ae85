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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"gitlab.com/flimzy/httpe"
)

var okResponse = map[string]bool{"ok": true}

// withDB runs fn with the database named in the request, holding the server
// lock; exclusive when write is set.
func (s *Server) withDB(r *http.Request, write bool, fn func(*database) error) error {
	if write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	db, ok := s.dbs[param(r, "db")]
	if !ok {
		return errNoDBFile
	}
	return fn(db)
}

func (s *Server) createDB() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		name := param(r, "db")
		if !validDBName.MatchString(name) {
			return &couchError{
				status: http.StatusBadRequest,
				Err:    "illegal_database_name",
				Reason: "Name: '" + name + "'. Only lowercase characters (a-z), digits (0-9), and any of the characters _, $, (, ), +, -, and / are allowed. Must begin with a letter.",
			}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.dbs[name]; ok {
			return errDBExists
		}
		s.dbs[name] = newDatabase(name)
		w.Header().Set("Location", "/"+name)
		return serveJSON(w, http.StatusCreated, okResponse)
	})
}

func (s *Server) deleteDB() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		name := param(r, "db")
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.dbs[name]; !ok {
			return errMissing
		}
		delete(s.dbs, name)
		return serveJSON(w, http.StatusOK, okResponse)
	})
}

func (s *Server) dbInfo() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		return s.withDB(r, false, func(db *database) error {
			return serveJSON(w, http.StatusOK, db.info())
		})
	})
}

func (s *Server) compact() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		if err := requireJSON(r); err != nil {
			return err
		}
		return s.withDB(r, true, func(db *database) error {
			db.compact()
			return serveJSON(w, http.StatusAccepted, okResponse)
		})
	})
}

// compact discards the bodies of revisions which are no longer leaves, as
// CouchDB does. Their place in the tree is kept for revision histories.
func (db *database) compact() {
	for _, d := range db.docs {
		for _, r := range d.revs {
			if !d.isLeaf(r) {
				r.body = nil
				r.data = nil
				r.compacted = true
			}
		}
	}
}

func (s *Server) compactView() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		if err := requireJSON(r); err != nil {
			return err
		}
		return s.withDB(r, false, func(db *database) error {
			if db.docs[designID(r)].live() == nil {
				return errMissing
			}
			return serveJSON(w, http.StatusAccepted, okResponse)
		})
	})
}

func (s *Server) viewCleanup() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		if err := requireJSON(r); err != nil {
			return err
		}
		return s.withDB(r, false, func(*database) error {
			return serveJSON(w, http.StatusAccepted, okResponse)
		})
	})
}

// isProperty reports whether docid names a database property such as
// _revs_limit, rather than a document.
func isProperty(docid string) bool {
	return strings.HasPrefix(docid, "_") &&
		!strings.HasPrefix(docid, "_design/") &&
		!strings.HasPrefix(docid, "_local/")
}

func (s *Server) getProperty(w http.ResponseWriter, r *http.Request, name string) error {
	return s.withDB(r, false, func(db *database) error {
		value, ok := db.props[name]
		if !ok {
			return errMissing
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(value)
		return err
	})
}

func (s *Server) putProperty(w http.ResponseWriter, r *http.Request, name string) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errBadRequest(err.Error())
	}
	if !json.Valid(body) {
		return errBadRequest("invalid UTF-8 JSON")
	}
	if name == "_revs_limit" {
		var limit int
		if err := json.Unmarshal(body, &limit); err != nil || limit < 1 {
			return errBadRequest("_revs_limit must be a positive integer")
		}
	}
	return s.withDB(r, true, func(db *database) error {
		db.props[name] = json.RawMessage(bytes.TrimSpace(body))
		return serveJSON(w, http.StatusOK, okResponse)
	})
}
