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

package couchcall_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/internal/couchtest"
)

// TestInMemory runs the integration suite against the in-memory server.
func TestInMemory(t *testing.T) {
	t.Parallel()
	runSuite(t, func(t *testing.T) string {
		return couchtest.NewTestServer(t)
	})
}

// TestCouchDB runs the integration suite against a real CouchDB, when USETC
// is set.
func TestCouchDB(t *testing.T) {
	addr := couchtest.StartCouchDB(t)
	runSuite(t, func(*testing.T) string { return addr })
}

// TestAllAppsUnderPrefix serves the database below /couch, as a reverse
// proxy would, and expects app paths to keep that prefix.
func TestAllAppsUnderPrefix(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.StripPrefix("/couch", couchtest.New()))
	t.Cleanup(ts.Close)
	client, err := couchcall.New(ts.URL + "/couch/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	db := client.DB("apps_db")
	if _, err := db.Create(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveDoc(ctx, map[string]interface{}{
		"_id":      "_design/with_index",
		"couchapp": map[string]interface{}{"index": "cylon"},
	}); err != nil {
		t.Fatal(err)
	}
	var paths []string
	if err := db.AllApps(ctx, func(app couchcall.App) { paths = append(paths, app.Path) }); err != nil {
		t.Fatal(err)
	}
	if d := testy.DiffInterface([]string{"/couch/apps_db/_design/with_index/cylon"}, paths); d != nil {
		t.Error(d)
	}
	if want := ts.URL + "/couch/apps_db/"; db.URI() != want {
		t.Errorf("Unexpected URI: %s", db.URI())
	}
}

var dbCounter int64

// newDB returns a handle to a freshly created database, dropped when the test
// ends.
func newDB(t *testing.T, addr string) *couchcall.DB {
	t.Helper()
	client, err := couchcall.New(addr)
	if err != nil {
		t.Fatal(err)
	}
	name := fmt.Sprintf("spec_db_%d", atomic.AddInt64(&dbCounter, 1))
	db := client.DB(name)
	if _, err := db.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_, _ = db.Drop(context.Background())
	})
	return db
}

func mustSave(t *testing.T, db *couchcall.DB, doc interface{}) *couchcall.DocResult {
	t.Helper()
	res, err := db.SaveDoc(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func saveCrew(t *testing.T, db *couchcall.DB) {
	t.Helper()
	_, err := db.BulkSave(context.Background(), []interface{}{
		map[string]interface{}{"_id": "789", "Name": "Cally Tyrol"},
		map[string]interface{}{"_id": "123", "Name": "Felix Gaeta"},
		map[string]interface{}{"_id": "456", "Name": "Samuel T. Anders"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func rowIDs(res *couchcall.ViewResult) []string {
	ids := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		ids[i] = row.ID
	}
	return ids
}

func runSuite(t *testing.T, server func(*testing.T) string) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and open round trip", func(t *testing.T) {
		db := newDB(t, server(t))
		doc := map[string]interface{}{
			"Name":   "X",
			"n":      float64(3),
			"nested": map[string]interface{}{"a": []interface{}{true, nil}},
		}
		res := mustSave(t, db, doc)
		if res.ID == "" || !strings.HasPrefix(res.Rev, "1-") {
			t.Fatalf("Unexpected result: %+v", res)
		}
		got, err := db.OpenDoc(ctx, res.ID)
		if err != nil {
			t.Fatal(err)
		}
		want := couchcall.Document{
			"_id":    res.ID,
			"_rev":   res.Rev,
			"Name":   "X",
			"n":      float64(3),
			"nested": map[string]interface{}{"a": []interface{}{true, nil}},
		}
		if d := testy.DiffInterface(want, got); d != nil {
			t.Error(d)
		}
		if d := testy.DiffInterface(want, res.Doc); d != nil {
			t.Errorf("returned document: %s", d)
		}
	})

	t.Run("save with id", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{"_id": "123", "Name": "X"})
		got, err := db.OpenDoc(ctx, "123")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID() != "123" || got["Name"] != "X" || got.Rev() == "" {
			t.Errorf("Unexpected document: %v", got)
		}
	})

	t.Run("create twice", func(t *testing.T) {
		db := newDB(t, server(t))
		_, err := db.Create(ctx)
		var e *couchcall.Error
		if !couchcall.IsPreconditionFailed(err) || !asError(err, &e) || e.Code != "file_exists" {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("drop twice", func(t *testing.T) {
		client, err := couchcall.New(server(t))
		if err != nil {
			t.Fatal(err)
		}
		db := client.DB(fmt.Sprintf("spec_db_%d", atomic.AddInt64(&dbCounter, 1)))
		if _, err := db.Create(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := db.Drop(ctx); err != nil {
			t.Fatal(err)
		}
		_, err = db.Drop(ctx)
		var e *couchcall.Error
		if !asError(err, &e) || e.Status != http.StatusNotFound || e.Code != "not_found" || e.Reason != "missing" {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("info", func(t *testing.T) {
		db := newDB(t, server(t))
		saveCrew(t, db)
		info, err := db.Info(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if info.Name != db.Name() || info.DocCount != 3 || info.InstanceStartTime == "" {
			t.Errorf("Unexpected info: %+v", info)
		}
	})

	t.Run("maintenance", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{
			"_id":   "_design/myview",
			"views": map[string]interface{}{"people": map[string]interface{}{"map": "function(doc) { emit(doc._id, doc); }"}},
		})
		for name, op := range map[string]func() (*couchcall.Ack, error){
			"compact":      func() (*couchcall.Ack, error) { return db.Compact(ctx) },
			"view cleanup": func() (*couchcall.Ack, error) { return db.ViewCleanup(ctx) },
			"compact view": func() (*couchcall.Ack, error) { return db.CompactView(ctx, "/myview") },
		} {
			o := <-couchcall.Go(ctx, func(context.Context) (*couchcall.Ack, error) { return op() })
			if !o.OK() || !o.Value.OK {
				t.Errorf("%s: unexpected outcome: %v", name, o.Err)
			}
			if o.Elapsed <= 0 {
				t.Errorf("%s: no request time reported", name)
			}
		}
		_, err := db.CompactView(ctx, "non_existing_design_name")
		var e *couchcall.Error
		if !asError(err, &e) || e.Status != http.StatusNotFound || e.Code != "not_found" || e.Reason != "missing" {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("properties", func(t *testing.T) {
		db := newDB(t, server(t))
		if _, err := db.SetDBProperty(ctx, "_revs_limit", 1500); err != nil {
			t.Fatal(err)
		}
		var limit int
		if err := db.GetDBProperty(ctx, "_revs_limit", &limit); err != nil {
			t.Fatal(err)
		}
		if limit != 1500 {
			t.Errorf("Unexpected _revs_limit: %d", limit)
		}
		var x interface{}
		if err := db.GetDBProperty(ctx, "_doesnt_exist", &x); !couchcall.IsNotFound(err) {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("open missing and deleted", func(t *testing.T) {
		db := newDB(t, server(t))
		_, err := db.OpenDoc(ctx, "nope")
		if !couchcall.IsNotFound(err) || couchcall.IsDeleted(err) {
			t.Errorf("Unexpected error for missing doc: %v", err)
		}

		res := mustSave(t, db, map[string]interface{}{"_id": "123"})
		removed, err := db.RemoveDoc(ctx, res.Doc)
		if err != nil {
			t.Fatal(err)
		}
		_, err = db.OpenDoc(ctx, "123")
		if !couchcall.IsDeleted(err) {
			t.Errorf("Unexpected error for deleted doc: %v", err)
		}
		tomb, err := db.OpenDoc(ctx, "123", couchcall.Rev(removed.Rev))
		if err != nil {
			t.Fatal(err)
		}
		if !tomb.Deleted() {
			t.Errorf("Expected tombstone, got %v", tomb)
		}
	})

	t.Run("remove requires current rev", func(t *testing.T) {
		db := newDB(t, server(t))
		res := mustSave(t, db, map[string]interface{}{"_id": "123", "Name": "X"})
		stale := map[string]interface{}{"_id": "123", "_rev": "1-00000000000000000000000000000000"}
		if _, err := db.RemoveDoc(ctx, stale); !couchcall.IsConflict(err) {
			t.Errorf("Unexpected error with wrong rev: %v", err)
		}
		removed, err := db.RemoveDoc(ctx, res.Doc)
		if err != nil {
			t.Fatal(err)
		}
		if removed.Rev == res.Rev || !strings.HasPrefix(removed.Rev, "2-") {
			t.Errorf("Unexpected tombstone revision: %s", removed.Rev)
		}
	})

	t.Run("update conflict", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{"_id": "123"})
		_, err := db.SaveDoc(ctx, map[string]interface{}{"_id": "123", "Name": "Y"})
		var e *couchcall.Error
		if !asError(err, &e) || e.Status != http.StatusConflict || e.Code != "conflict" || e.Reason != "Document update conflict." {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("revisions", func(t *testing.T) {
		db := newDB(t, server(t))
		res := mustSave(t, db, map[string]interface{}{"_id": "123", "n": 1})
		res = mustSave(t, db, res.Doc)
		res = mustSave(t, db, res.Doc)
		doc, err := db.OpenDoc(ctx, "123", couchcall.Revs())
		if err != nil {
			t.Fatal(err)
		}
		revs, err := doc.Revisions()
		if err != nil {
			t.Fatal(err)
		}
		if revs.Start != 3 || len(revs.IDs) != 3 {
			t.Errorf("Unexpected revisions: %+v", revs)
		}
		if revs.Revs()[0] != res.Rev {
			t.Errorf("Newest revision %s, want %s", revs.Revs()[0], res.Rev)
		}
	})

	t.Run("bulk save reports conflicts per document", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{"_id": "123"})
		results, err := db.BulkSave(ctx, []interface{}{
			map[string]interface{}{"_id": "123", "Name": "Louanne Katraine"},
			map[string]interface{}{"_id": "456", "Name": "Kara Thrace"},
			map[string]interface{}{"_id": "789", "Name": "Lee Adama"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 3 {
			t.Fatalf("Unexpected results: %v", results)
		}
		if results[0].Error != "conflict" || results[0].Reason != "Document update conflict." || !couchcall.IsConflict(results[0].Err()) {
			t.Errorf("Unexpected first result: %+v", results[0])
		}
		for i, r := range results[1:] {
			if r.Err() != nil || r.Rev == "" {
				t.Errorf("Unexpected result %d: %+v", i+1, r)
			}
		}
	})

	t.Run("bulk save all or nothing", func(t *testing.T) {
		db := newDB(t, server(t))
		first := mustSave(t, db, map[string]interface{}{"_id": "123", "Name": "Louanne Katraine"})
		results, err := db.BulkSave(ctx, []interface{}{
			map[string]interface{}{"_id": "123", "Name": "Sasha"},
		}, couchcall.AllOrNothing(true))
		if err != nil {
			t.Fatal(err)
		}
		if results[0].Err() != nil {
			t.Fatalf("Unexpected result: %+v", results[0])
		}
		doc, err := db.OpenDoc(ctx, "123", couchcall.Conflicts())
		if err != nil {
			t.Fatal(err)
		}
		leaves := append([]string{doc.Rev()}, doc.Conflicts()...)
		sort.Strings(leaves)
		want := []string{first.Rev, results[0].Rev}
		sort.Strings(want)
		if d := testy.DiffInterface(want, leaves); d != nil {
			t.Error(d)
		}
	})

	t.Run("bulk remove", func(t *testing.T) {
		db := newDB(t, server(t))
		a := mustSave(t, db, map[string]interface{}{"_id": "a"})
		b := mustSave(t, db, map[string]interface{}{"_id": "b"})
		results, err := db.BulkRemove(ctx, []interface{}{a.Doc, b.Doc})
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range results {
			if r.Err() != nil {
				t.Errorf("Unexpected result: %+v", r)
			}
		}
		all, err := db.AllDocs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all.Rows) != 0 {
			t.Errorf("Expected no documents, got %v", rowIDs(all))
		}
	})

	t.Run("copy", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{"_id": "123", "Name": "X"})
		copied, err := db.CopyDoc(ctx, "123", "456")
		if err != nil {
			t.Fatal(err)
		}
		doc, err := db.OpenDoc(ctx, "456")
		if err != nil {
			t.Fatal(err)
		}
		if doc["Name"] != "X" {
			t.Errorf("Unexpected copy: %v", doc)
		}
		if _, err := db.CopyDoc(ctx, "123", "456"); !couchcall.IsConflict(err) {
			t.Errorf("Unexpected error copying over existing doc: %v", err)
		}
		if _, err := db.CopyDoc(ctx, "123", "456", couchcall.Rev(copied.Rev)); err != nil {
			t.Errorf("Unexpected error copying with rev: %v", err)
		}
	})

	t.Run("query", func(t *testing.T) {
		db := newDB(t, server(t))
		saveCrew(t, db)
		mapFn := "function (doc) { emit(doc._id, 1); }"
		reduceFn := "function (key, values, rereduce) { return sum(values); }"

		res, err := db.Query(ctx, mapFn, "", "javascript")
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"123", "456", "789"}, rowIDs(res)); d != nil {
			t.Error(d)
		}

		res, err = db.Query(ctx, mapFn, reduceFn, "javascript")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Rows) != 1 || string(res.Rows[0].Key) != "null" || string(res.Rows[0].Value) != "3" {
			t.Errorf("Unexpected reduce result: %+v", res.Rows)
		}

		res, err = db.Query(ctx, mapFn, "", "", couchcall.StartKey("456"))
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"456", "789"}, rowIDs(res)); d != nil {
			t.Error(d)
		}

		res, err = db.Query(ctx, mapFn, "", "", couchcall.Keys("789", "123"))
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"789", "123"}, rowIDs(res)); d != nil {
			t.Error(d)
		}

		res, err = db.Query(ctx, mapFn, "", "", couchcall.Keys())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Rows) != 0 {
			t.Errorf("Expected no rows for an empty key set, got %v", rowIDs(res))
		}
	})

	t.Run("view", func(t *testing.T) {
		db := newDB(t, server(t))
		saveCrew(t, db)
		mustSave(t, db, map[string]interface{}{
			"_id": "_design/spec_db",
			"views": map[string]interface{}{
				"people": map[string]interface{}{"map": "function (doc) { emit(doc._id, doc.Name); }"},
			},
		})

		res, err := db.View(ctx, "spec_db/people")
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"123", "456", "789"}, rowIDs(res)); d != nil {
			t.Error(d)
		}
		var name string
		if err := res.Rows[0].ScanValue(&name); err != nil {
			t.Fatal(err)
		}
		if name != "Felix Gaeta" {
			t.Errorf("Unexpected value: %s", name)
		}

		res, err = db.View(ctx, "spec_db/people", couchcall.Skip(2))
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"789"}, rowIDs(res)); d != nil {
			t.Error(d)
		}

		res, err = db.View(ctx, "spec_db/people", couchcall.Keys("456", "123"), couchcall.IncludeDocs())
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"456", "123"}, rowIDs(res)); d != nil {
			t.Error(d)
		}
		var doc couchcall.Document
		if err := res.Rows[0].ScanDoc(&doc); err != nil {
			t.Fatal(err)
		}
		if doc["Name"] != "Samuel T. Anders" {
			t.Errorf("Unexpected included doc: %v", doc)
		}

		res, err = db.View(ctx, "spec_db/people", couchcall.Keys())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Rows) != 0 {
			t.Errorf("Expected no rows for an empty key set, got %v", rowIDs(res))
		}

		_, err = db.View(ctx, "spec_db/nope")
		var e *couchcall.Error
		if !asError(err, &e) || e.Status != http.StatusNotFound || e.Reason != "missing_named_view" {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("all docs", func(t *testing.T) {
		db := newDB(t, server(t))
		saveCrew(t, db)
		mustSave(t, db, map[string]interface{}{"_id": "_design/x"})

		res, err := db.AllDocs(ctx, couchcall.Limit(2), couchcall.IncludeDocs())
		if err != nil {
			t.Fatal(err)
		}
		if res.TotalRows != 4 {
			t.Errorf("Unexpected total_rows: %d", res.TotalRows)
		}
		if d := testy.DiffInterface([]string{"123", "456"}, rowIDs(res)); d != nil {
			t.Error(d)
		}

		design, err := db.AllDesignDocs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if d := testy.DiffInterface([]string{"_design/x"}, rowIDs(design)); d != nil {
			t.Error(d)
		}
	})

	t.Run("all apps", func(t *testing.T) {
		db := newDB(t, server(t))
		mustSave(t, db, map[string]interface{}{
			"_id": "_design/with_attachments",
			"_attachments": map[string]interface{}{
				"index.html": map[string]interface{}{
					"content_type": "text/html",
					"data":         "PGh0bWw+PHA+SGksIGhlcmUgaXMgaW5kZXghPC9wPjwvaHRtbD4=",
				},
			},
		})
		mustSave(t, db, map[string]interface{}{
			"_id":      "_design/with_index",
			"couchapp": map[string]interface{}{"index": "cylon"},
		})
		mustSave(t, db, map[string]interface{}{"_id": "_design/plain"})

		var apps []couchcall.App
		if err := db.AllApps(ctx, func(app couchcall.App) { apps = append(apps, app) }); err != nil {
			t.Fatal(err)
		}
		if len(apps) != 2 {
			t.Fatalf("Unexpected apps: %+v", apps)
		}
		if apps[0].Name != "with_attachments" || apps[0].Path != "/"+db.Name()+"/_design/with_attachments/index.html" {
			t.Errorf("Unexpected first app: %s %s", apps[0].Name, apps[0].Path)
		}
		att, _ := apps[0].DesignDoc["_attachments"].(map[string]interface{})
		index, _ := att["index.html"].(map[string]interface{})
		if index["length"] != float64(len("<html><p>Hi, here is index!</p></html>")) {
			t.Errorf("Unexpected attachment stub: %v", index)
		}
		if apps[1].Name != "with_index" || apps[1].Path != "/"+db.Name()+"/_design/with_index/cylon" {
			t.Errorf("Unexpected second app: %s %s", apps[1].Name, apps[1].Path)
		}
	})

	t.Run("dispatch", func(t *testing.T) {
		db := newDB(t, server(t))
		var (
			gotErr   *couchcall.Error
			complete bool
		)
		<-couchcall.Dispatch(ctx, db.Client(), func(ctx context.Context) (couchcall.Document, error) {
			return db.OpenDoc(ctx, "nope")
		}, couchcall.Handlers[couchcall.Document]{
			Success:  func(couchcall.Document, time.Duration) { t.Error("unexpected success") },
			Error:    func(e *couchcall.Error) { gotErr = e },
			Complete: func() { complete = true },
		})
		if gotErr == nil || gotErr.Status != http.StatusNotFound || gotErr.Reason != "missing" {
			t.Errorf("Unexpected error: %v", gotErr)
		}
		if !complete {
			t.Error("complete handler not called")
		}
	})

	t.Run("server", func(t *testing.T) {
		addr := server(t)
		client, err := couchcall.New(addr)
		if err != nil {
			t.Fatal(err)
		}
		info, err := client.ServerInfo(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if info.CouchDB != "Welcome" || info.Version == "" {
			t.Errorf("Unexpected server info: %+v", info)
		}
		uuids, err := client.UUIDs(ctx, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(uuids) != 3 {
			t.Errorf("Unexpected uuids: %v", uuids)
		}
		if _, err := client.ActiveTasks(ctx); err != nil {
			t.Error(err)
		}
		db := newDB(t, addr)
		dbs, err := client.AllDBs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, name := range dbs {
			found = found || name == db.Name()
		}
		if !found {
			t.Errorf("%s not in %v", db.Name(), dbs)
		}
	})
}

func asError(err error, target **couchcall.Error) bool {
	e, ok := err.(*couchcall.Error)
	if ok {
		*target = e
	}
	return ok
}

func TestSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	addr := couchtest.NewTestServer(t, couchtest.WithUser(couchtest.AdminUser, couchtest.AdminPassword, "_admin"))
	client, err := couchcall.New(addr)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := client.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Name != "" {
		t.Errorf("Expected anonymous session, got %+v", sess)
	}

	if _, err := client.Login(ctx, couchtest.AdminUser, "wrong"); couchcall.HTTPStatus(err) != http.StatusUnauthorized {
		t.Errorf("Unexpected login error: %v", err)
	}

	var completed bool
	var logged *couchcall.Session
	<-couchcall.Dispatch(ctx, client, func(ctx context.Context) (*couchcall.Session, error) {
		return client.Login(ctx, couchtest.AdminUser, couchtest.AdminPassword)
	}, couchcall.Handlers[*couchcall.Session]{
		Success:  func(s *couchcall.Session, _ time.Duration) { logged = s },
		Complete: func() { completed = true },
	})
	if !completed || logged == nil || logged.Name != couchtest.AdminUser {
		t.Fatalf("Unexpected login: %+v", logged)
	}

	sess, err = client.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Name != couchtest.AdminUser || sess.AuthenticationMethod != "cookie" {
		t.Errorf("Unexpected session: %+v", sess)
	}

	if _, err := client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	sess, err = client.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Name != "" {
		t.Errorf("Expected anonymous session after logout, got %+v", sess)
	}
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()
	addr := couchtest.NewTestServer(t, couchtest.WithUser(couchtest.AdminUser, couchtest.AdminPassword, "_admin"))
	client, err := couchcall.New(addr, couchcall.BasicAuth(couchtest.AdminUser, couchtest.AdminPassword))
	if err != nil {
		t.Fatal(err)
	}
	sess, err := client.Session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sess.Name != couchtest.AdminUser || sess.AuthenticationMethod != "default" {
		t.Errorf("Unexpected session: %+v", sess)
	}

	bad, err := couchcall.New(addr, couchcall.BasicAuth(couchtest.AdminUser, "wrong"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bad.AllDBs(context.Background()); couchcall.HTTPStatus(err) != http.StatusUnauthorized {
		t.Errorf("Unexpected error: %v", err)
	}
}
