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
package cmd

import (
	"context"
	"testing"

	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/internal/couchtest"
)

func Test_db_RunE(t *testing.T) {
	tests := testy.NewTable()
	tests.Add("create", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "create-db", "pilots"},
			stdout: "{\n  \"ok\": true\n}\n",
		}
	})
	tests.Add("create configured database", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "--database", "pilots", "create-db", "-f", "text"},
			stdout: "OK\n",
		}
	})
	tests.Add("create without name", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "create-db"},
			status: errors.ErrUsage,
		}
	})
	tests.Add("create existing", func(t *testing.T) interface{} {
		return cmdTest{
			args:     []string{"--server", crew(t), "create-db", "crew"},
			status:   errors.ErrPreconditionFailed,
			stderrRE: `file_exists`,
		}
	})
	tests.Add("create illegal name", func(t *testing.T) interface{} {
		return cmdTest{
			args:     []string{"--server", couchtest.NewTestServer(t), "create-db", "Pilots"},
			status:   errors.ErrBadRequest,
			stderrRE: `illegal_database_name`,
		}
	})
	tests.Add("create many", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", crew(t), "create-db", "-f", "text", "pilots", "crew", "marines"},
			status: errors.ErrPreconditionFailed,
			stdout: "pilots: OK\ncrew: file_exists (The database could not be created, the file already exists.)\nmarines: OK\n",
		}
	})
	tests.Add("drop missing", func(t *testing.T) interface{} {
		return cmdTest{
			args:     []string{"--server", couchtest.NewTestServer(t), "drop-db", "pilots"},
			status:   errors.ErrNotFound,
			stderrRE: `not_found: missing`,
		}
	})
	tests.Add("drop many", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", crew(t), "drop-db", "-f", "go-template={{ range . }}{{ .db }}={{ .ok }} {{ end }}", "crew", "pilots"},
			status: errors.ErrNotFound,
			stdout: "crew=true pilots=false \n",
		}
	})
	tests.Add("info", func(t *testing.T) interface{} {
		return cmdTest{
			args:     crewArgs(crew(t), "info"),
			stdoutRE: `(?s)"db_name": "crew",\n  "doc_count": 4,\n  "doc_del_count": 0,`,
		}
	})
	tests.Add("info yaml", func(t *testing.T) interface{} {
		return cmdTest{
			args:     crewArgs(crew(t), "info", "-f", "yaml"),
			stdoutRE: `(?m)^db_name: crew$`,
		}
	})
	tests.Add("info missing database", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "--database", "pilots", "info"},
			status: errors.ErrNotFound,
		}
	})
	tests.Add("compact", func(t *testing.T) interface{} {
		return cmdTest{
			args:   crewArgs(crew(t), "compact", "-f", "raw"),
			stdout: "{\"ok\":true}\n",
		}
	})
	tests.Add("compact view", func(t *testing.T) interface{} {
		return cmdTest{
			args:   crewArgs(crew(t), "compact-view", "_design/crew", "-f", "text"),
			stdout: "OK\n",
		}
	})
	tests.Add("compact view missing", func(t *testing.T) interface{} {
		return cmdTest{
			args:   crewArgs(crew(t), "cv", "cylons"),
			status: errors.ErrNotFound,
		}
	})
	tests.Add("view cleanup", func(t *testing.T) interface{} {
		return cmdTest{
			args:   crewArgs(crew(t), "view-cleanup", "-f", "text"),
			stdout: "OK\n",
		}
	})
	tests.Add("all dbs", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", crew(t), "all-dbs", "-f", "text"},
			stdout: "crew\n",
		}
	})
	tests.Add("uuids", func(t *testing.T) interface{} {
		return cmdTest{
			args:     []string{"--server", couchtest.NewTestServer(t), "uuids", "-n", "3", "-f", "text"},
			stdoutRE: `^(?:[0-9a-f]{32}\n){3}$`,
		}
	})
	tests.Add("uuids invalid count", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "uuids", "-n", "0"},
			status: errors.ErrUsage,
		}
	})
	tests.Add("tasks", func(t *testing.T) interface{} {
		return cmdTest{
			args:   []string{"--server", couchtest.NewTestServer(t), "tasks", "-f", "raw"},
			stdout: "[]\n",
		}
	})

	tests.Run(t, func(t *testing.T, tt cmdTest) {
		tt.Test(t)
	})
}

func TestProperties(t *testing.T) {
	addr := crew(t)
	ctx := context.Background()

	if _, stderr, status := runCmd(ctx, "", crewArgs(addr, "set-prop", "_revs_limit", "5")...); status != 0 {
		t.Fatalf("set-prop failed: %s", stderr)
	}
	stdout, stderr, status := runCmd(ctx, "", crewArgs(addr, "get-prop", "_revs_limit", "-f", "raw")...)
	if status != 0 {
		t.Fatalf("get-prop failed: %s", stderr)
	}
	if stdout != "5\n" {
		t.Errorf("Unexpected property value: %q", stdout)
	}

	if _, _, status := runCmd(ctx, "10", crewArgs(addr, "set-prop", "_revs_limit", "-D", "-")...); status != 0 {
		t.Fatal("set-prop from stdin failed")
	}
	stdout, _, _ = runCmd(ctx, "", crewArgs(addr, "get-prop", "_revs_limit", "-f", "raw")...)
	if stdout != "10\n" {
		t.Errorf("Unexpected property value: %q", stdout)
	}

	tests := testy.NewTable()
	tests.Add("invalid value", cmdTest{
		args:   crewArgs(addr, "set-prop", "_revs_limit", "{five"),
		status: errors.ErrData,
	})
	tests.Add("value twice", cmdTest{
		args:   crewArgs(addr, "set-prop", "_revs_limit", "5", "-d", "6"),
		status: errors.ErrUsage,
	})
	tests.Add("no value", cmdTest{
		args:   crewArgs(addr, "set-prop", "_revs_limit"),
		status: errors.ErrUsage,
	})
	tests.Add("unknown property", cmdTest{
		args:   crewArgs(addr, "get-prop", "_cylons"),
		status: errors.ErrNotFound,
	})
	tests.Run(t, func(t *testing.T, tt cmdTest) {
		tt.Test(t)
	})
}
