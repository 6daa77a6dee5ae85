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
	"strings"

	"github.com/icza/dyno"

	"github.com/go-kivik/couchcall/chttp"
)

// App is an application served from a design document.
type App struct {
	// Name is the design document ID, without the _design/ prefix.
	Name string
	// Path is the absolute path of the application's index, including any
	// base path of the client prefix.
	Path string
	// DesignDoc is the full design document.
	DesignDoc Document
}

// AllApps calls eachApp for every design document which serves an
// application: one with an index.html attachment, or a couchapp.index entry.
// Other design documents are skipped.
func (db *DB) AllApps(ctx context.Context, eachApp func(App)) error {
	result, err := db.AllDesignDocs(ctx, IncludeDocs())
	if err != nil {
		return err
	}
	for _, row := range result.Rows {
		var doc Document
		if err := row.ScanDoc(&doc); err != nil {
			return err
		}
		if doc == nil {
			continue
		}
		index, ok := appIndex(doc)
		if !ok {
			continue
		}
		name := strings.TrimPrefix(doc.ID(), "_design/")
		eachApp(App{
			Name:      name,
			Path:      db.resourcePath("_design", chttp.EncodeDocID(name), index),
			DesignDoc: doc,
		})
	}
	return nil
}

func appIndex(doc Document) (string, bool) {
	m := map[string]interface{}(doc)
	if _, err := dyno.Get(m, "_attachments", "index.html"); err == nil {
		return "index.html", true
	}
	if index, err := dyno.GetString(m, "couchapp", "index"); err == nil && index != "" {
		return index, true
	}
	return "", false
}
