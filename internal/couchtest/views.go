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
	"net/http"
	"sort"
	"strings"

	"gitlab.com/flimzy/httpe"

	"github.com/go-kivik/couchcall/internal/collate"
)

type viewRow struct {
	id    string
	key   interface{}
	value interface{}
	doc   interface{}
}

func (r viewRow) toJSON(includeDocs bool) map[string]interface{} {
	out := map[string]interface{}{
		"id":    r.id,
		"key":   r.key,
		"value": r.value,
	}
	if includeDocs {
		out["doc"] = r.doc
	}
	return out
}

// compareDocIDKey orders _all_docs keys by raw bytes when both are strings.
func compareDocIDKey(a, b interface{}) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return collate.CompareRaw(as, bs)
	}
	return collate.Compare(a, b)
}

// sortedIDs returns the document IDs of db visible to views and _all_docs.
func (db *database) sortedIDs() []string {
	ids := make([]string, 0, len(db.docs))
	for id := range db.docs {
		if strings.HasPrefix(id, "_local/") {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (db *database) renderLive(id string, conflicts bool) interface{} {
	d := db.docs[id]
	w := d.live()
	if w == nil {
		return nil
	}
	return d.render(w, docOptions{conflicts: conflicts})
}

type allDocsBody struct {
	Keys []interface{} `json:"keys"`
}

func (s *Server) allDocs() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var body allDocsBody
		if r.Method == http.MethodPost {
			if err := decodeJSON(r, &body); err != nil {
				return err
			}
		}
		vq, err := parseViewQuery(r.URL.Query(), body.Keys)
		if err != nil {
			return err
		}
		return s.withDB(r, false, func(db *database) error {
			return serveJSON(w, http.StatusOK, db.allDocs(vq))
		})
	})
}

func (db *database) allDocs(vq *viewQuery) map[string]interface{} {
	ids := db.sortedIDs()
	var index []viewRow
	for _, id := range ids {
		if w := db.docs[id].live(); w != nil {
			index = append(index, viewRow{
				id:    id,
				key:   id,
				value: map[string]interface{}{"rev": w.String()},
			})
		}
	}
	total := len(index)
	if vq.descending {
		reverse(index)
	}

	var rows []map[string]interface{}
	offset := 0
	if vq.hasKeys {
		for _, key := range vq.keys {
			rows = append(rows, db.allDocsKeyRow(key, vq))
		}
	} else {
		var selected []viewRow
		selected, offset = selectRange(index, vq, compareDocIDKey)
		for _, row := range selected {
			if vq.includeDocs {
				row.doc = db.renderLive(row.id, vq.conflicts)
			}
			rows = append(rows, row.toJSON(vq.includeDocs))
		}
	}
	start, end := vq.page(len(rows))
	return map[string]interface{}{
		"total_rows": total,
		"offset":     offset + start,
		"rows":       nonNil(rows[start:end]),
	}
}

// allDocsKeyRow looks up a single key for a keys-based _all_docs request.
// Deleted documents are reported with their tombstone revision.
func (db *database) allDocsKeyRow(key interface{}, vq *viewQuery) map[string]interface{} {
	id, _ := key.(string)
	d := db.docs[id]
	if d == nil || strings.HasPrefix(id, "_local/") {
		return map[string]interface{}{"key": key, "error": "not_found"}
	}
	w := d.winner()
	value := map[string]interface{}{"rev": w.String()}
	row := map[string]interface{}{"id": id, "key": id, "value": value}
	if w.deleted {
		value["deleted"] = true
		if vq.includeDocs {
			row["doc"] = nil
		}
		return row
	}
	if vq.includeDocs {
		row["doc"] = d.render(w, docOptions{conflicts: vq.conflicts})
	}
	return row
}

// selectRange returns the rows of index within the query's key range, along
// with the position of the first of them.
func selectRange(index []viewRow, vq *viewQuery, cmp func(a, b interface{}) int) ([]viewRow, int) {
	var selected []viewRow
	offset := -1
	for i, row := range index {
		if !vq.inRange(row.key, cmp) {
			continue
		}
		if offset < 0 {
			offset = i
		}
		selected = append(selected, row)
	}
	if offset < 0 {
		offset = len(index)
	}
	return selected, offset
}

func reverse(rows []viewRow) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

func nonNil(rows []map[string]interface{}) []map[string]interface{} {
	if rows == nil {
		return []map[string]interface{}{}
	}
	return rows
}

type tempViewBody struct {
	Language string        `json:"language"`
	Map      string        `json:"map"`
	Reduce   string        `json:"reduce"`
	Keys     []interface{} `json:"keys"`
}

func (s *Server) tempView() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var body tempViewBody
		if err := decodeJSON(r, &body); err != nil {
			return err
		}
		if err := checkLanguage(body.Language); err != nil {
			return err
		}
		if body.Map == "" {
			return errBadRequest("`map` is required")
		}
		vq, err := parseViewQuery(r.URL.Query(), body.Keys)
		if err != nil {
			return err
		}
		return s.withDB(r, false, func(db *database) error {
			result, err := s.runView(db, body.Map, body.Reduce, vq)
			if err != nil {
				return err
			}
			return serveJSON(w, http.StatusOK, result)
		})
	})
}

func checkLanguage(language string) error {
	if language != "" && language != "javascript" {
		return &couchError{status: http.StatusBadRequest, Err: "unknown_query_language", Reason: language}
	}
	return nil
}

func (s *Server) view() httpe.HandlerWithError {
	return httpe.HandlerWithErrorFunc(func(w http.ResponseWriter, r *http.Request) error {
		var body allDocsBody
		if r.Method == http.MethodPost {
			if err := decodeJSON(r, &body); err != nil {
				return err
			}
		}
		vq, err := parseViewQuery(r.URL.Query(), body.Keys)
		if err != nil {
			return err
		}
		viewName := param(r, "view")
		return s.withDB(r, false, func(db *database) error {
			ddoc := db.docs[designID(r)].live()
			if ddoc == nil {
				return errMissing
			}
			language, _ := ddoc.body["language"].(string)
			if err := checkLanguage(language); err != nil {
				return err
			}
			views, _ := ddoc.body["views"].(map[string]interface{})
			def, ok := views[viewName].(map[string]interface{})
			if !ok {
				return errMissingView
			}
			mapCode, _ := def["map"].(string)
			reduceCode, _ := def["reduce"].(string)
			result, err := s.runView(db, mapCode, reduceCode, vq)
			if err != nil {
				return err
			}
			return serveJSON(w, http.StatusOK, result)
		})
	})
}

// mapIndex runs the map function over every live, non-design document and
// returns the emitted rows in collation order.
func (s *Server) mapIndex(db *database, code string) ([]viewRow, error) {
	var (
		rows    []viewRow
		current string
	)
	fn, err := compileMap(code, func(key, value interface{}) {
		rows = append(rows, viewRow{id: current, key: key, value: value})
	})
	if err != nil {
		return nil, err
	}
	for _, id := range db.sortedIDs() {
		if strings.HasPrefix(id, "_design/") {
			continue
		}
		d := db.docs[id]
		w := d.live()
		if w == nil {
			continue
		}
		current = id
		if err := fn(d.render(w, docOptions{})); err != nil {
			s.logger.Printf("map function failed on %s/%s: %s", db.name, id, err)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := collate.Compare(rows[i].key, rows[j].key); c != 0 {
			return c < 0
		}
		return rows[i].id < rows[j].id
	})
	return rows, nil
}

func (s *Server) runView(db *database, mapCode, reduceCode string, vq *viewQuery) (map[string]interface{}, error) {
	var reduce reduceFunc
	if reduceCode != "" && (!vq.hasReduce || vq.reduce) {
		var err error
		if reduce, err = compileReduce(reduceCode); err != nil {
			return nil, err
		}
		if vq.includeDocs {
			return nil, errQueryParse("`include_docs` is invalid for reduce")
		}
		if vq.hasKeys && !vq.group && vq.groupLevel == 0 {
			return nil, errQueryParse("Multi-key fetches for reduce views must use `group=true`")
		}
	} else if vq.group || vq.groupLevel > 0 {
		return nil, errQueryParse("Invalid use of grouping on a map view.")
	}
	index, err := s.mapIndex(db, mapCode)
	if err != nil {
		return nil, err
	}
	total := len(index)
	if vq.descending {
		reverse(index)
	}

	var (
		selected []viewRow
		offset   int
	)
	if vq.hasKeys {
		for _, key := range vq.keys {
			for _, row := range index {
				if collate.Compare(row.key, key) == 0 {
					selected = append(selected, row)
				}
			}
		}
	} else {
		selected, offset = selectRange(index, vq, collate.Compare)
	}

	if reduce != nil {
		rows, err := reduceRows(selected, vq, reduce)
		if err != nil {
			return nil, err
		}
		start, end := vq.page(len(rows))
		return map[string]interface{}{"rows": nonNil(rows[start:end])}, nil
	}

	start, end := vq.page(len(selected))
	rows := make([]map[string]interface{}, 0, end-start)
	for _, row := range selected[start:end] {
		if vq.includeDocs {
			row.doc = db.linkedDoc(row, vq.conflicts)
		}
		rows = append(rows, row.toJSON(vq.includeDocs))
	}
	return map[string]interface{}{
		"total_rows": total,
		"offset":     offset + start,
		"rows":       rows,
	}, nil
}

// linkedDoc returns the document to include for a map row. A value with an
// _id member links to that document instead of the emitting one.
func (db *database) linkedDoc(row viewRow, conflicts bool) interface{} {
	value, ok := row.value.(map[string]interface{})
	if !ok {
		return db.renderLive(row.id, conflicts)
	}
	id, ok := value["_id"].(string)
	if !ok {
		return db.renderLive(row.id, conflicts)
	}
	if rev, _ := value["_rev"].(string); rev != "" {
		d, r, err := db.lookup(id, rev)
		if err != nil {
			return nil
		}
		return d.render(r, docOptions{conflicts: conflicts})
	}
	if db.docs[id] == nil {
		return nil
	}
	return db.renderLive(id, conflicts)
}

// groupKey truncates array keys to level elements; level < 0 keeps the
// whole key.
func groupKey(key interface{}, level int) interface{} {
	arr, ok := key.([]interface{})
	if !ok || level < 0 || len(arr) <= level {
		return key
	}
	return arr[:level]
}

func reduceRows(rows []viewRow, vq *viewQuery, fn reduceFunc) ([]map[string]interface{}, error) {
	if !vq.group && vq.groupLevel == 0 {
		if len(rows) == 0 {
			return nil, nil
		}
		value, err := reduceGroup(rows, fn)
		if err != nil {
			return nil, err
		}
		return []map[string]interface{}{{"key": nil, "value": value}}, nil
	}
	level := vq.groupLevel
	if vq.group && level == 0 {
		level = -1
	}
	var out []map[string]interface{}
	for start := 0; start < len(rows); {
		key := groupKey(rows[start].key, level)
		end := start + 1
		for end < len(rows) && collate.Compare(groupKey(rows[end].key, level), key) == 0 {
			end++
		}
		value, err := reduceGroup(rows[start:end], fn)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{"key": key, "value": value})
		start = end
	}
	return out, nil
}

func reduceGroup(rows []viewRow, fn reduceFunc) (interface{}, error) {
	keys := make([][2]interface{}, len(rows))
	values := make([]interface{}, len(rows))
	for i, row := range rows {
		keys[i] = [2]interface{}{row.key, row.id}
		values[i] = row.value
	}
	return fn(keys, values, false)
}
