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
	"context"
	"net/http"

	"github.com/google/uuid"
	"gitlab.com/flimzy/httpe"
)

const sessionCookieName = "AuthSession"

type contextKey struct{ name string }

var userContextKey = &contextKey{"userCtx"}

type userCtx struct {
	Name   *string  `json:"name"`
	Roles  []string `json:"roles"`
	method string
}

// authMiddleware identifies the user making the request. Unknown basic auth
// credentials are rejected; a stale session cookie falls back to anonymous.
func (s *Server) authMiddleware(next httpe.HandlerWithError) httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		uc, err := s.identify(r)
		if err != nil {
			return err
		}
		ctx := context.WithValue(r.Context(), userContextKey, uc)
		return next.ServeHTTPWithError(w, r.WithContext(ctx))
	})
}

func (s *Server) identify(r *http.Request) (*userCtx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, password, ok := r.BasicAuth(); ok {
		u, found := s.users[name]
		if !found || u.password != password {
			return nil, errBadLogin
		}
		return &userCtx{Name: &name, Roles: u.roles, method: "default"}, nil
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if name, ok := s.sessions[cookie.Value]; ok {
			return &userCtx{Name: &name, Roles: s.users[name].roles, method: "cookie"}, nil
		}
	}
	if len(s.users) == 0 {
		return &userCtx{Roles: []string{"_admin"}}, nil
	}
	return &userCtx{Roles: []string{}}, nil
}

func currentUser(r *http.Request) *userCtx {
	uc, _ := r.Context().Value(userContextKey).(*userCtx)
	if uc == nil {
		return &userCtx{Roles: []string{}}
	}
	return uc
}

func (s *Server) session() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		uc := currentUser(r)
		info := map[string]interface{}{
			"authentication_db":       "_users",
			"authentication_handlers": []string{"cookie", "default"},
		}
		if uc.method != "" {
			info["authenticated"] = uc.method
		}
		roles := uc.Roles
		if roles == nil {
			roles = []string{}
		}
		return serveJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"userCtx": userCtx{Name: uc.Name, Roles: roles},
			"info":    info,
		})
	})
}

func (s *Server) login() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Name     string `json:"name" form:"name"`
			Password string `json:"password" form:"password"`
		}
		if err := s.bind(r, &req); err != nil {
			return err
		}
		s.mu.Lock()
		u, ok := s.users[req.Name]
		if !ok || u.password != req.Password {
			s.mu.Unlock()
			return errBadLogin
		}
		token := uuid.NewString()
		s.sessions[token] = req.Name
		s.mu.Unlock()

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
		})
		roles := u.roles
		if roles == nil {
			roles = []string{}
		}
		return serveJSON(w, http.StatusOK, map[string]interface{}{
			"ok":    true,
			"name":  req.Name,
			"roles": roles,
		})
	})
}

func (s *Server) logout() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			s.mu.Lock()
			delete(s.sessions, cookie.Value)
			s.mu.Unlock()
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		return serveJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
}
