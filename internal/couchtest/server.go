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

// Package couchtest provides an in-memory server speaking the CouchDB 1.x
// HTTP API, sufficient to exercise every operation of the couchcall client.
package couchtest

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/monoculum/formam/v3"
	"github.com/pkg/errors"
	"gitlab.com/flimzy/httpe"
)

// Version is the CouchDB version reported by the server root.
const Version = "1.7.2"

func init() {
	chi.RegisterMethod("COPY")
}

// Server is an in-memory CouchDB server. It is safe for concurrent use.
type Server struct {
	mux         *chi.Mux
	formDecoder *formam.Decoder
	logger      *log.Logger

	mu       sync.RWMutex
	dbs      map[string]*database
	users    map[string]*user
	sessions map[string]string
}

// Option configures a [Server].
type Option interface {
	apply(*Server)
}

type user struct {
	password string
	roles    []string
}

type userOption struct {
	name, password string
	roles          []string
}

func (o userOption) apply(s *Server) {
	s.users[o.name] = &user{password: o.password, roles: o.roles}
}

// WithUser registers a user which may authenticate with HTTP basic auth or a
// cookie session. Without any users, every request is treated as coming from
// an anonymous admin.
func WithUser(name, password string, roles ...string) Option {
	return userOption{name: name, password: password, roles: roles}
}

type loggerOption struct{ *log.Logger }

func (o loggerOption) apply(s *Server) {
	s.logger = o.Logger
}

// WithLogger sets the logger used to report map function failures.
func WithLogger(l *log.Logger) Option {
	return loggerOption{l}
}

// New returns a new, empty server.
func New(options ...Option) *Server {
	s := &Server{
		mux: chi.NewMux(),
		formDecoder: formam.NewDecoder(&formam.DecoderOptions{
			TagName: "form",
		}),
		logger:   log.New(io.Discard, "", 0),
		dbs:      make(map[string]*database),
		users:    make(map[string]*user),
		sessions: make(map[string]string),
	}
	for _, option := range options {
		option.apply(s)
	}
	s.routes(s.mux)
	return s
}

func (s *Server) routes(mux *chi.Mux) {
	mux.Use(
		GetHead,
		httpe.ToMiddleware(s.handleErrors),
		httpe.ToMiddleware(s.authMiddleware),
	)
	mux.Get("/", httpe.ToHandler(s.root()).ServeHTTP)
	mux.Get("/_all_dbs", httpe.ToHandler(s.allDBs()).ServeHTTP)
	mux.Get("/_uuids", httpe.ToHandler(s.uuids()).ServeHTTP)
	mux.Get("/_active_tasks", httpe.ToHandler(s.activeTasks()).ServeHTTP)
	mux.Get("/_session", httpe.ToHandler(s.session()).ServeHTTP)
	mux.Post("/_session", httpe.ToHandler(s.login()).ServeHTTP)
	mux.Delete("/_session", httpe.ToHandler(s.logout()).ServeHTTP)

	// Databases
	mux.Put("/{db}", httpe.ToHandler(s.createDB()).ServeHTTP)
	mux.Delete("/{db}", httpe.ToHandler(s.deleteDB()).ServeHTTP)
	mux.Get("/{db}", httpe.ToHandler(s.dbInfo()).ServeHTTP)
	mux.Post("/{db}", httpe.ToHandler(s.postDoc()).ServeHTTP)
	mux.Post("/{db}/_compact", httpe.ToHandler(s.compact()).ServeHTTP)
	mux.Post("/{db}/_compact/{ddoc}", httpe.ToHandler(s.compactView()).ServeHTTP)
	mux.Post("/{db}/_view_cleanup", httpe.ToHandler(s.viewCleanup()).ServeHTTP)
	mux.Post("/{db}/_bulk_docs", httpe.ToHandler(s.bulkDocs()).ServeHTTP)
	mux.Get("/{db}/_all_docs", httpe.ToHandler(s.allDocs()).ServeHTTP)
	mux.Post("/{db}/_all_docs", httpe.ToHandler(s.allDocs()).ServeHTTP)
	mux.Post("/{db}/_temp_view", httpe.ToHandler(s.tempView()).ServeHTTP)

	// Design docs
	mux.Get("/{db}/_design/{ddoc}", httpe.ToHandler(s.getDoc(designID)).ServeHTTP)
	mux.Put("/{db}/_design/{ddoc}", httpe.ToHandler(s.putDoc(designID)).ServeHTTP)
	mux.Delete("/{db}/_design/{ddoc}", httpe.ToHandler(s.deleteDoc(designID)).ServeHTTP)
	mux.Method("COPY", "/{db}/_design/{ddoc}", httpe.ToHandler(s.copyDoc(designID)))
	mux.Get("/{db}/_design/{ddoc}/_view/{view}", httpe.ToHandler(s.view()).ServeHTTP)
	mux.Post("/{db}/_design/{ddoc}/_view/{view}", httpe.ToHandler(s.view()).ServeHTTP)
	mux.Get("/{db}/_design/{ddoc}/{attname}", httpe.ToHandler(s.attachment(designID)).ServeHTTP)

	// Local docs
	mux.Get("/{db}/_local/{docid}", httpe.ToHandler(s.getDoc(localID)).ServeHTTP)
	mux.Put("/{db}/_local/{docid}", httpe.ToHandler(s.putDoc(localID)).ServeHTTP)
	mux.Delete("/{db}/_local/{docid}", httpe.ToHandler(s.deleteDoc(localID)).ServeHTTP)

	// Documents, and database properties such as _revs_limit
	mux.Get("/{db}/{docid}", httpe.ToHandler(s.getDoc(plainID)).ServeHTTP)
	mux.Put("/{db}/{docid}", httpe.ToHandler(s.putDoc(plainID)).ServeHTTP)
	mux.Delete("/{db}/{docid}", httpe.ToHandler(s.deleteDoc(plainID)).ServeHTTP)
	mux.Method("COPY", "/{db}/{docid}", httpe.ToHandler(s.copyDoc(plainID)))
	mux.Get("/{db}/{docid}/{attname}", httpe.ToHandler(s.attachment(plainID)).ServeHTTP)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleErrors(next httpe.HandlerWithError) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		if err := next.ServeHTTPWithError(w, r); err != nil {
			ce := &couchError{}
			if !errors.As(err, &ce) {
				status := statusOf(err)
				ce = &couchError{
					status: status,
					Err:    strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"),
					Reason: err.Error(),
				}
			}
			return serveJSON(w, ce.status, ce)
		}
		return nil
	})
}

func serveJSON(w http.ResponseWriter, status int, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = io.Copy(w, bytes.NewReader(body))
	return err
}

// bind decodes a JSON or form-encoded request body into v.
func (s *Server) bind(r *http.Request, v interface{}) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		defer r.Body.Close()
		if err := r.ParseForm(); err != nil {
			return errBadRequest(err.Error())
		}
		return s.formDecoder.Decode(r.Form, v)
	case "application/json", "":
		return decodeJSON(r, v)
	default:
		return &couchError{status: http.StatusUnsupportedMediaType, Err: "bad_content_type", Reason: "Content-Type must be 'application/x-www-form-urlencoded' or 'application/json'"}
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest("invalid UTF-8 JSON")
	}
	return nil
}

// requireJSON mirrors CouchDB's check on maintenance endpoints.
func requireJSON(r *http.Request) error {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct != "application/json" {
		return &couchError{status: http.StatusUnsupportedMediaType, Err: "bad_content_type", Reason: "Content-Type must be application/json"}
	}
	return nil
}

// param returns the unescaped URL parameter. chi matches against the raw
// path, so encoded characters arrive still encoded.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *Server) root() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, _ *http.Request) error {
		return serveJSON(w, http.StatusOK, map[string]interface{}{
			"couchdb": "Welcome",
			"version": Version,
			"vendor": map[string]string{
				"name": "couchcall",
			},
		})
	})
}

func (s *Server) allDBs() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, _ *http.Request) error {
		s.mu.RLock()
		names := make([]string, 0, len(s.dbs))
		for name := range s.dbs {
			names = append(names, name)
		}
		s.mu.RUnlock()
		sort.Strings(names)
		return serveJSON(w, http.StatusOK, names)
	})
}

func (s *Server) activeTasks() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, _ *http.Request) error {
		// Compaction completes synchronously, so nothing is ever running.
		return serveJSON(w, http.StatusOK, []interface{}{})
	})
}
