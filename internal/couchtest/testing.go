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
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Image is the CouchDB image started by [StartCouchDB].
const Image = "couchdb:1.7.2"

// Admin credentials for servers started by this package.
const (
	AdminUser     = "admin"
	AdminPassword = "abc123"
)

// NewTestServer serves a new in-memory server until the test ends, and
// returns its URL.
func NewTestServer(t testing.TB, options ...Option) string {
	t.Helper()
	ts := httptest.NewServer(New(options...))
	t.Cleanup(ts.Close)
	return ts.URL
}

// StartCouchDB starts a real CouchDB in a container and returns its URL,
// with admin credentials. The test is skipped unless USETC is set.
func StartCouchDB(t testing.TB) string {
	t.Helper()
	if os.Getenv("USETC") == "" {
		t.Skip("USETC not set, skipping testcontainers")
	}
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        Image,
		ExposedPorts: []string{"5984/tcp"},
		WaitingFor:   wait.ForHTTP("/").WithPort("5984/tcp").WithStartupTimeout(120 * time.Second),
		Env: map[string]string{
			"COUCHDB_USER":     AdminUser,
			"COUCHDB_PASSWORD": AdminPassword,
		},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5984/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("http://%s:%s@%s:%s", AdminUser, AdminPassword, host, port.Port())
}
