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
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func builtinError(format string, args ...interface{}) error {
	return &couchError{status: http.StatusInternalServerError, Err: "builtin_reduce_error", Reason: fmt.Sprintf(format, args...)}
}

func rawJSON(v interface{}) string {
	buf, _ := json.Marshal(v)
	return string(buf)
}

// reduceCount implements _count.
func reduceCount(_ [][2]interface{}, values []interface{}, rereduce bool) (interface{}, error) {
	if !rereduce {
		return float64(len(values)), nil
	}
	var total float64
	for _, v := range values {
		n, _ := v.(float64)
		total += n
	}
	return total, nil
}

// reduceSum implements _sum. Arrays of numbers are summed element-wise.
func reduceSum(_ [][2]interface{}, values []interface{}, _ bool) (interface{}, error) {
	var (
		total  float64
		totals []float64
	)
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			total += t
		case []interface{}:
			for i, e := range t {
				n, ok := e.(float64)
				if !ok {
					return nil, builtinError("The _sum function requires that map values be numbers or arrays of numbers, not '%s'", rawJSON(v))
				}
				if i >= len(totals) {
					totals = append(totals, 0)
				}
				totals[i] += n
			}
		default:
			return nil, builtinError("The _sum function requires that map values be numbers or arrays of numbers, not '%s'", rawJSON(v))
		}
	}
	if totals == nil {
		return total, nil
	}
	if total != 0 {
		return nil, builtinError("The _sum function cannot mix numbers and arrays")
	}
	out := make([]interface{}, len(totals))
	for i, t := range totals {
		out[i] = t
	}
	return out, nil
}

type stats struct {
	Sum    float64 `json:"sum" mapstructure:"sum"`
	Count  float64 `json:"count" mapstructure:"count"`
	Min    float64 `json:"min" mapstructure:"min"`
	Max    float64 `json:"max" mapstructure:"max"`
	SumSqr float64 `json:"sumsqr" mapstructure:"sumsqr"`
}

func (s *stats) add(n float64) {
	if s.Count == 0 || n < s.Min {
		s.Min = n
	}
	if s.Count == 0 || n > s.Max {
		s.Max = n
	}
	s.Sum += n
	s.SumSqr += n * n
	s.Count++
}

func (s *stats) merge(o stats) {
	if s.Count == 0 {
		*s = o
		return
	}
	s.Min = math.Min(s.Min, o.Min)
	s.Max = math.Max(s.Max, o.Max)
	s.Sum += o.Sum
	s.SumSqr += o.SumSqr
	s.Count += o.Count
}

// reduceStats implements _stats. Values may be numbers, arrays of numbers,
// or objects carrying pre-aggregated statistics.
func reduceStats(_ [][2]interface{}, values []interface{}, _ bool) (interface{}, error) {
	if len(values) > 0 {
		if _, ok := values[0].([]interface{}); ok {
			return statsArray(values)
		}
	}
	var result stats
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			result.add(t)
		case map[string]interface{}:
			pre, err := decodeStats(t)
			if err != nil {
				return nil, err
			}
			result.merge(pre)
		default:
			return nil, builtinError("the _stats function requires that map values be numbers or arrays of numbers, not '%s'", rawJSON(v))
		}
	}
	return result, nil
}

func decodeStats(v map[string]interface{}) (stats, error) {
	var (
		pre      stats
		metadata mapstructure.Metadata
	)
	if err := mapstructure.DecodeMetadata(v, &pre, &metadata); err != nil {
		return stats{}, builtinError("invalid _stats input %s", rawJSON(v))
	}
	if len(metadata.Unset) > 0 {
		sort.Strings(metadata.Unset)
		return stats{}, builtinError("user _stats input missing required field %s (%s)", strings.ToLower(metadata.Unset[0]), rawJSON(v))
	}
	return pre, nil
}

func statsArray(values []interface{}) (interface{}, error) {
	var results []stats
	for _, v := range values {
		arr, ok := v.([]interface{})
		if !ok {
			return nil, builtinError("the _stats function requires that map values be numbers or arrays of numbers, not '%s'", rawJSON(v))
		}
		for i, e := range arr {
			n, ok := e.(float64)
			if !ok {
				return nil, builtinError("the _stats function requires that map values be numbers or arrays of numbers, not '%s'", rawJSON(v))
			}
			if i >= len(results) {
				results = append(results, stats{})
			}
			results[i].add(n)
		}
	}
	return results, nil
}
