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

// Package gotmpl renders output with a template given as the format argument,
// as in -f go-template='{{ .rev }}'.
package gotmpl

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"text/template"

	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

// funcs are available to every template, in addition to the built-ins.
var funcs = template.FuncMap{
	// json re-encodes a value, for keys and nested documents.
	"json": func(v interface{}) (string, error) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	},
	// join joins a list of strings, such as a user's roles.
	"join": func(sep string, list []interface{}) string {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i], _ = v.(string)
		}
		return strings.Join(parts, sep)
	},
}

type tmplFormat struct {
	tmpl *template.Template
}

var _ output.FormatArg = &tmplFormat{}

// New returns a go-template formatter.
func New() output.Format {
	return &tmplFormat{}
}

func (*tmplFormat) Required() bool { return true }

func (f *tmplFormat) Arg(arg string) error {
	tmpl, err := template.New("").Funcs(funcs).Parse(arg)
	if err != nil {
		return err
	}
	f.tmpl = tmpl
	return nil
}

// Output decodes the result, keeping numbers as written so that sequence
// numbers and row counts are not printed in exponent form.
func (f *tmplFormat) Output(w io.Writer, r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var result interface{}
	if err := dec.Decode(&result); err != nil {
		return err
	}
	return f.tmpl.Execute(w, result)
}
