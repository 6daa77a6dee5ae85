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
	"net/http"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// prelude defines the helpers CouchDB's JavaScript query server provides to
// design functions.
const prelude = `
function sum(values) {
	var rv = 0;
	for (var i = 0; i < values.length; i++) {
		rv += values[i];
	}
	return rv;
}
function isArray(obj) { return Array.isArray(obj); }
function toJSON(obj) { return JSON.stringify(obj); }
function log(msg) {}
`

func newVM() (*goja.Runtime, error) {
	vm := goja.New()
	if _, err := vm.RunString(prelude); err != nil {
		return nil, err
	}
	return vm, nil
}

// mapFunc runs a compiled map function against a single document.
type mapFunc func(doc map[string]interface{}) error

// reduceFunc reduces the values emitted for keys, each a [key, docid] pair.
type reduceFunc func(keys [][2]interface{}, values []interface{}, rereduce bool) (interface{}, error)

func compilationError(err error) error {
	return &couchError{status: http.StatusBadRequest, Err: "compilation_error", Reason: err.Error()}
}

// exception converts a JavaScript exception into a plain error.
func exception(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return errors.New(ex.String())
	}
	return err
}

// normalize round-trips v through JSON, so that values produced by JavaScript
// have the same Go types as decoded request bodies.
func normalize(v interface{}) (interface{}, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(buf, &out)
	return out, err
}

// compileMap compiles a JavaScript map function. emit receives normalized
// keys and values.
func compileMap(code string, emit func(key, value interface{})) (mapFunc, error) {
	vm, err := newVM()
	if err != nil {
		return nil, err
	}
	err = vm.Set("emit", func(key, value interface{}) {
		k, err := normalize(key)
		if err != nil {
			panic(vm.NewTypeError("emit: key is not serializable: %s", err))
		}
		v, err := normalize(value)
		if err != nil {
			panic(vm.NewTypeError("emit: value is not serializable: %s", err))
		}
		emit(k, v)
	})
	if err != nil {
		return nil, err
	}
	if _, err := vm.RunString("var map = (" + code + "\n);"); err != nil {
		return nil, compilationError(exception(err))
	}
	fn, ok := goja.AssertFunction(vm.Get("map"))
	if !ok {
		return nil, compilationError(errors.New("map expression does not evaluate to a function"))
	}
	return func(doc map[string]interface{}) error {
		arg, err := normalize(doc)
		if err != nil {
			return err
		}
		if _, err := fn(goja.Undefined(), vm.ToValue(arg)); err != nil {
			return exception(err)
		}
		return nil
	}, nil
}

// compileReduce compiles a JavaScript reduce function, or resolves one of the
// built-in reduce functions.
func compileReduce(code string) (reduceFunc, error) {
	switch code {
	case "_count":
		return reduceCount, nil
	case "_sum":
		return reduceSum, nil
	case "_stats":
		return reduceStats, nil
	}
	if len(code) > 0 && code[0] == '_' {
		return nil, &couchError{status: http.StatusBadRequest, Err: "invalid_design_doc", Reason: "Unknown builtin reduce function: " + code}
	}
	vm, err := newVM()
	if err != nil {
		return nil, err
	}
	if _, err := vm.RunString("var reduce = (" + code + "\n);"); err != nil {
		return nil, compilationError(exception(err))
	}
	fn, ok := goja.AssertFunction(vm.Get("reduce"))
	if !ok {
		return nil, compilationError(errors.New("reduce expression does not evaluate to a function"))
	}
	return func(keys [][2]interface{}, values []interface{}, rereduce bool) (interface{}, error) {
		jsKeys := make([]interface{}, len(keys))
		for i, k := range keys {
			jsKeys[i] = []interface{}{k[0], k[1]}
		}
		var k interface{} = jsKeys
		if rereduce {
			k = nil
		}
		result, err := fn(goja.Undefined(), vm.ToValue(k), vm.ToValue(values), vm.ToValue(rereduce))
		if err != nil {
			return nil, &couchError{status: http.StatusInternalServerError, Err: "reduce_error", Reason: exception(err).Error()}
		}
		return normalize(result.Export())
	}, nil
}
