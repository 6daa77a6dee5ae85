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

// Package collate orders decoded JSON values the way CouchDB orders view
// keys: null, false, true, numbers, strings (Unicode collation), arrays, then
// objects.
//
// Objects are compared member by member with their keys sorted, since Go maps
// do not preserve member order.
package collate

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und)
)

type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

func kindOf(v interface{}) kind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case float64, int, int64:
		return kindNumber
	case string:
		return kindString
	case []interface{}:
		return kindArray
	case map[string]interface{}:
		return kindObject
	}
	panic(fmt.Sprintf("collate: unexpected JSON type %T", v))
}

// CompareString compares two strings with the Unicode collation algorithm.
// The result is 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareString(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Compare compares two values as produced by encoding/json. It panics on a
// type json.Unmarshal would never produce.
func Compare(a, b interface{}) int {
	ak, bk := kindOf(a), kindOf(b)
	if ak != bk {
		return sign(int(ak) - int(bk))
	}
	switch ak {
	case kindNull:
		return 0
	case kindBool:
		return compareBool(a.(bool), b.(bool))
	case kindNumber:
		return compareNumber(toFloat(a), toFloat(b))
	case kindString:
		return CompareString(a.(string), b.(string))
	case kindArray:
		return compareArray(a.([]interface{}), b.([]interface{}))
	default:
		return compareObject(a.(map[string]interface{}), b.(map[string]interface{}))
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v.(float64)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareNumber(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareArray(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return sign(len(a) - len(b))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return CompareString(keys[i], keys[j]) < 0
	})
	return keys
}

func compareObject(a, b map[string]interface{}) int {
	ak, bk := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := CompareString(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return sign(len(ak) - len(bk))
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	}
	return 0
}

// CompareRaw compares two document IDs by their raw bytes, the order used by
// _all_docs.
func CompareRaw(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
