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

package output

import (
	"bytes"
	"encoding/json"
	"io"
	"text/template"

	"github.com/go-kivik/couchcall"
)

// TextRenderer is implemented by results which have a plain text form, used
// by the text format. Other formats read the JSON encoding.
type TextRenderer interface {
	io.Reader
	RenderText(io.Writer) error
}

// Result is the JSON encoding of a command result, optionally paired with a
// text template.
type Result struct {
	body  *bytes.Reader
	err   error
	value interface{}
	text  *template.Template
}

var _ TextRenderer = &Result{}

// Value returns the result v, with no text form.
func Value(v interface{}) *Result {
	r := &Result{value: v}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	r.err = enc.Encode(v)
	r.body = bytes.NewReader(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return r
}

// Text returns the result v, rendered by tmpl as text.
func Text(tmpl string, v interface{}) *Result {
	r := Value(v)
	r.text = template.Must(template.New("").Parse(tmpl))
	return r
}

func (r *Result) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.body.Read(p)
}

// RenderText executes the text template, or copies the JSON when there is
// none. It does not consume the reader.
func (r *Result) RenderText(w io.Writer) error {
	if r.err != nil {
		return r.err
	}
	if r.text == nil {
		_, err := io.Copy(w, io.NewSectionReader(r.body, 0, r.body.Size()))
		return err
	}
	return r.text.Execute(w, r.value)
}

// OK is the result of an operation which returns nothing but success.
func OK() *Result {
	return Text("OK", couchcall.Ack{OK: true})
}

// DocResult is the result of a document write.
func DocResult(res *couchcall.DocResult) *Result {
	return Text(`OK: {{ .OK }}
ID: {{ .ID }}
Rev: {{ .Rev }}`, res)
}

// BulkResults lists the outcome of each document of a bulk write, one per
// line.
func BulkResults(results []couchcall.BulkResult) *Result {
	if results == nil {
		results = []couchcall.BulkResult{}
	}
	return Text(`{{ range . }}{{ .ID }}: {{ if .Error }}{{ .Error }} ({{ .Reason }}){{ else }}{{ .Rev }}{{ end }}
{{ end }}`, results)
}

// Rows lists view rows, one per line, as the id followed by the JSON key and
// value.
func Rows(result *couchcall.ViewResult) *Result {
	if result.Rows == nil {
		result.Rows = []couchcall.Row{}
	}
	return Text(`{{ range .Rows }}{{ if .ID }}{{ .ID }} {{ end }}{{ printf "%s" .Key }}{{ if .Value }} {{ printf "%s" .Value }}{{ end }}{{ if .Error }} {{ .Error }}{{ end }}
{{ end }}`, result)
}
