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
	"net/url"
	"strconv"
)

// viewQuery holds the parsed query parameters shared by _all_docs, views
// and temporary views.
type viewQuery struct {
	key, startKey, endKey    interface{}
	hasKey, hasStart, hasEnd bool

	keys    []interface{}
	hasKeys bool

	inclusiveEnd bool
	descending   bool
	skip         int
	limit        int // negative for no limit
	includeDocs  bool
	conflicts    bool

	reduce     bool
	hasReduce  bool
	group      bool
	groupLevel int
}

func jsonParam(q url.Values, names ...string) (interface{}, bool, error) {
	for _, name := range names {
		raw, ok := q[name]
		if !ok {
			continue
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw[0]), &v); err != nil {
			return nil, false, errBadRequest("invalid JSON in " + name + " parameter")
		}
		return v, true, nil
	}
	return nil, false, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errQueryParse("Invalid value for integer: \"" + v + "\"")
	}
	return n, nil
}

// parseViewQuery reads the query string. bodyKeys, if not nil, are the keys
// supplied in a POST body.
func parseViewQuery(q url.Values, bodyKeys []interface{}) (*viewQuery, error) {
	vq := &viewQuery{inclusiveEnd: true}
	var err error
	if vq.key, vq.hasKey, err = jsonParam(q, "key"); err != nil {
		return nil, err
	}
	if vq.startKey, vq.hasStart, err = jsonParam(q, "startkey", "start_key"); err != nil {
		return nil, err
	}
	if vq.endKey, vq.hasEnd, err = jsonParam(q, "endkey", "end_key"); err != nil {
		return nil, err
	}
	keys, hasKeys, err := jsonParam(q, "keys")
	if err != nil {
		return nil, err
	}
	if hasKeys {
		list, ok := keys.([]interface{})
		if !ok {
			return nil, errBadRequest("`keys` parameter must be an array.")
		}
		vq.keys, vq.hasKeys = list, true
	}
	if bodyKeys != nil {
		vq.keys, vq.hasKeys = bodyKeys, true
	}
	if q.Get("inclusive_end") != "" {
		if vq.inclusiveEnd, err = boolParam(q, "inclusive_end"); err != nil {
			return nil, err
		}
	}
	if vq.descending, err = boolParam(q, "descending"); err != nil {
		return nil, err
	}
	if vq.includeDocs, err = boolParam(q, "include_docs"); err != nil {
		return nil, err
	}
	if vq.conflicts, err = boolParam(q, "conflicts"); err != nil {
		return nil, err
	}
	if q.Get("reduce") != "" {
		vq.hasReduce = true
		if vq.reduce, err = boolParam(q, "reduce"); err != nil {
			return nil, err
		}
	}
	if vq.group, err = boolParam(q, "group"); err != nil {
		return nil, err
	}
	if vq.skip, err = intParam(q, "skip", 0); err != nil {
		return nil, err
	}
	if vq.limit, err = intParam(q, "limit", -1); err != nil {
		return nil, err
	}
	if vq.groupLevel, err = intParam(q, "group_level", 0); err != nil {
		return nil, err
	}
	return vq, nil
}

// page applies skip and limit.
func (vq *viewQuery) page(n int) (start, end int) {
	start = vq.skip
	if start > n {
		start = n
	}
	end = n
	if vq.limit >= 0 && start+vq.limit < end {
		end = start + vq.limit
	}
	return start, end
}

// inRange reports whether key falls within the key, startkey and endkey
// bounds, taking direction into account.
func (vq *viewQuery) inRange(key interface{}, cmp func(a, b interface{}) int) bool {
	if vq.hasKey && cmp(key, vq.key) != 0 {
		return false
	}
	if vq.hasStart {
		c := cmp(key, vq.startKey)
		if (!vq.descending && c < 0) || (vq.descending && c > 0) {
			return false
		}
	}
	if vq.hasEnd {
		c := cmp(key, vq.endKey)
		if vq.descending {
			c = -c
		}
		if c > 0 || (c == 0 && !vq.inclusiveEnd) {
			return false
		}
	}
	return true
}
