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
	"testing"

	"gitlab.com/flimzy/testy"
)

func TestReduceSum(t *testing.T) {
	type tt struct {
		values  []interface{}
		want    interface{}
		wantErr string
	}

	tests := testy.NewTable()
	tests.Add("numbers", tt{
		values: []interface{}{float64(1), float64(2.5)},
		want:   float64(3.5),
	})
	tests.Add("arrays", tt{
		values: []interface{}{
			[]interface{}{float64(1), float64(2)},
			[]interface{}{float64(3)},
		},
		want: []interface{}{float64(4), float64(2)},
	})
	tests.Add("string", tt{
		values:  []interface{}{"x"},
		wantErr: `The _sum function requires that map values be numbers or arrays of numbers, not '"x"'`,
	})
	tests.Add("mixed", tt{
		values:  []interface{}{float64(1), []interface{}{float64(1)}},
		wantErr: "The _sum function cannot mix numbers and arrays",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		got, err := reduceSum(nil, tt.values, false)
		if !testy.ErrorMatches(tt.wantErr, err) {
			t.Fatalf("Unexpected error: %s", err)
		}
		if err != nil {
			return
		}
		if d := testy.DiffInterface(tt.want, got); d != nil {
			t.Error(d)
		}
	})
}

func TestReduceCount(t *testing.T) {
	got, _ := reduceCount(nil, []interface{}{"a", nil, "c"}, false)
	if got != float64(3) {
		t.Errorf("Unexpected count: %v", got)
	}
	got, _ = reduceCount(nil, []interface{}{float64(3), float64(4)}, true)
	if got != float64(7) {
		t.Errorf("Unexpected rereduced count: %v", got)
	}
}

func TestReduceStats(t *testing.T) {
	type tt struct {
		values  []interface{}
		want    interface{}
		wantErr string
	}

	tests := testy.NewTable()
	tests.Add("numbers", tt{
		values: []interface{}{float64(4), float64(-1), float64(2)},
		want:   stats{Sum: 5, Count: 3, Min: -1, Max: 4, SumSqr: 21},
	})
	tests.Add("pre-aggregated", tt{
		values: []interface{}{
			float64(10),
			map[string]interface{}{"sum": float64(3), "count": float64(2), "min": float64(1), "max": float64(2), "sumsqr": float64(5)},
		},
		want: stats{Sum: 13, Count: 3, Min: 1, Max: 10, SumSqr: 105},
	})
	tests.Add("incomplete object", tt{
		values:  []interface{}{map[string]interface{}{"sum": float64(3)}},
		wantErr: `user _stats input missing required field count ({"sum":3})`,
	})
	tests.Add("arrays", tt{
		values: []interface{}{
			[]interface{}{float64(1), float64(2)},
			[]interface{}{float64(3), float64(4)},
		},
		want: []stats{
			{Sum: 4, Count: 2, Min: 1, Max: 3, SumSqr: 10},
			{Sum: 6, Count: 2, Min: 2, Max: 4, SumSqr: 20},
		},
	})
	tests.Add("bool", tt{
		values:  []interface{}{true},
		wantErr: "the _stats function requires that map values be numbers or arrays of numbers, not 'true'",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		got, err := reduceStats(nil, tt.values, false)
		if !testy.ErrorMatches(tt.wantErr, err) {
			t.Fatalf("Unexpected error: %s", err)
		}
		if err != nil {
			return
		}
		if d := testy.DiffInterface(tt.want, got); d != nil {
			t.Error(d)
		}
	})
}
