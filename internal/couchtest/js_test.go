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
	"testing"

	"gitlab.com/flimzy/testy"
)

type emitted struct {
	Key, Value interface{}
}

func TestCompileMap(t *testing.T) {
	type tt struct {
		code       string
		doc        map[string]interface{}
		want       []emitted
		wantErr    string
		wantStatus int
		runErr     string
	}

	tests := testy.NewTable()
	tests.Add("emit id", tt{
		code: `function (doc) { emit(doc._id, 1); }`,
		doc:  map[string]interface{}{"_id": "foo"},
		want: []emitted{{Key: "foo", Value: float64(1)}},
	})
	tests.Add("emit twice", tt{
		code: `function (doc) { emit(doc.a, null); emit([doc.a, doc.b], {x: true}); }`,
		doc:  map[string]interface{}{"a": "x", "b": float64(2)},
		want: []emitted{
			{Key: "x"},
			{Key: []interface{}{"x", float64(2)}, Value: map[string]interface{}{"x": true}},
		},
	})
	tests.Add("trailing comment", tt{
		code: "function (doc) { emit(null, null); } // done",
		doc:  map[string]interface{}{},
		want: []emitted{{}},
	})
	tests.Add("prelude helpers", tt{
		code: `function (doc) { if (isArray(doc.tags)) { emit(toJSON(doc.tags), sum(doc.n)); } }`,
		doc:  map[string]interface{}{"tags": []interface{}{"a"}, "n": []interface{}{float64(1), float64(2)}},
		want: []emitted{{Key: `["a"]`, Value: float64(3)}},
	})
	tests.Add("syntax error", tt{
		code:       `function (doc) { emit(`,
		wantErr:    ".+",
		wantStatus: http.StatusBadRequest,
	})
	tests.Add("not a function", tt{
		code:       `"oink"`,
		wantErr:    "map expression does not evaluate to a function",
		wantStatus: http.StatusBadRequest,
	})
	tests.Add("runtime exception", tt{
		code:   `function (doc) { throw new Error("no thanks"); }`,
		doc:    map[string]interface{}{},
		runErr: "no thanks",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		var got []emitted
		fn, err := compileMap(tt.code, func(k, v interface{}) {
			got = append(got, emitted{Key: k, Value: v})
		})
		if !testy.ErrorMatchesRE(tt.wantErr, err) {
			t.Fatalf("Unexpected error: %s", err)
		}
		if err != nil {
			if status := statusOf(err); status != tt.wantStatus {
				t.Errorf("Unexpected status: %d", status)
			}
			return
		}
		err = fn(tt.doc)
		if !testy.ErrorMatchesRE(tt.runErr, err) {
			t.Fatalf("Unexpected run error: %s", err)
		}
		if err != nil {
			return
		}
		if d := testy.DiffInterface(tt.want, got); d != nil {
			t.Error(d)
		}
	})
}

func TestCompileReduce(t *testing.T) {
	type tt struct {
		code       string
		keys       [][2]interface{}
		values     []interface{}
		rereduce   bool
		want       interface{}
		wantErr    string
		wantStatus int
	}

	tests := testy.NewTable()
	tests.Add("sum helper", tt{
		code:   `function (key, values, rereduce) { return sum(values); }`,
		keys:   [][2]interface{}{{"a", "1"}, {"b", "2"}},
		values: []interface{}{float64(1), float64(2)},
		want:   float64(3),
	})
	tests.Add("keys are visible", tt{
		code:   `function (keys, values) { return keys.map(function (k) { return k[1]; }); }`,
		keys:   [][2]interface{}{{"a", "1"}, {"b", "2"}},
		values: []interface{}{nil, nil},
		want:   []interface{}{"1", "2"},
	})
	tests.Add("rereduce passes null keys", tt{
		code:     `function (keys, values, rereduce) { return keys === null && rereduce; }`,
		values:   []interface{}{float64(1)},
		rereduce: true,
		want:     true,
	})
	tests.Add("builtin count", tt{
		code:   "_count",
		values: []interface{}{"a", "b"},
		want:   float64(2),
	})
	tests.Add("unknown builtin", tt{
		code:       "_median",
		wantErr:    "Unknown builtin reduce function: _median",
		wantStatus: http.StatusBadRequest,
	})
	tests.Add("exception", tt{
		code:       `function () { throw "nope"; }`,
		wantErr:    "nope",
		wantStatus: http.StatusInternalServerError,
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		fn, err := compileReduce(tt.code)
		if err == nil {
			var got interface{}
			got, err = fn(tt.keys, tt.values, tt.rereduce)
			if err == nil {
				if d := testy.DiffInterface(tt.want, got); d != nil {
					t.Error(d)
				}
			}
		}
		if !testy.ErrorMatchesRE(tt.wantErr, err) {
			t.Fatalf("Unexpected error: %s", err)
		}
		if err != nil {
			if status := statusOf(err); status != tt.wantStatus {
				t.Errorf("Unexpected status: %d", status)
			}
		}
	})
}
