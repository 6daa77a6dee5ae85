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
	"net/url"
	"strconv"

	"github.com/go-kivik/couchcall/chttp"
)

// ServerInfo is the welcome message of the server root.
type ServerInfo struct {
	CouchDB string `json:"couchdb"`
	Version string `json:"version"`
	Vendor  struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"vendor"`
}

// ServerInfo returns the server's welcome message, including its version.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodGet, "/", nil, &info)); err != nil {
		return nil, err
	}
	return &info, nil
}

// AllDBs returns the names of all databases on the server.
func (c *Client) AllDBs(ctx context.Context) ([]string, error) {
	var names []string
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodGet, "/_all_dbs", nil, &names)); err != nil {
		return nil, err
	}
	return names, nil
}

// UUIDs returns count UUIDs generated by the server.
func (c *Client) UUIDs(ctx context.Context, count int) ([]string, error) {
	if count < 1 {
		return nil, badRequest("count must be positive")
	}
	opts := &chttp.Options{Query: url.Values{"count": []string{strconv.Itoa(count)}}}
	var res struct {
		UUIDs []string `json:"uuids"`
	}
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodGet, "/_uuids", opts, &res)); err != nil {
		return nil, err
	}
	return res.UUIDs, nil
}

// ActiveTask is a task running on the server, such as compaction or
// indexing.
type ActiveTask struct {
	Type      string `json:"type"`
	PID       string `json:"pid"`
	Database  string `json:"database,omitempty"`
	DesignDoc string `json:"design_document,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	StartedOn int64  `json:"started_on"`
	UpdatedOn int64  `json:"updated_on"`
}

// ActiveTasks lists the tasks running on the server.
func (c *Client) ActiveTasks(ctx context.Context) ([]ActiveTask, error) {
	var tasks []ActiveTask
	if err := convertError(c.chttp.DoJSON(ctx, http.MethodGet, "/_active_tasks", nil, &tasks)); err != nil {
		return nil, err
	}
	return tasks, nil
}
