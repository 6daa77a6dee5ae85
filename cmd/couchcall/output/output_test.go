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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
)

func TestTerminated(t *testing.T) {
	type tt struct {
		writes []string
		want   string
	}

	tests := testy.NewTable()
	tests.Add("no newline", tt{
		writes: []string{"asdf"},
		want:   "asdf\n",
	})
	tests.Add("with newline", tt{
		writes: []string{"asdf\n"},
		want:   "asdf\n",
	})
	tests.Add("newline not last", tt{
		writes: []string{"as\n", "df"},
		want:   "as\ndf\n",
	})
	tests.Add("empty write after newline", tt{
		writes: []string{"asdf\n", ""},
		want:   "asdf\n",
	})
	tests.Add("nothing written", tt{
		want: "\n",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		buf := &bytes.Buffer{}
		w := &terminated{w: buf}
		for _, s := range tt.writes {
			if _, err := io.WriteString(w, s); err != nil {
				t.Fatal(err)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if buf.String() != tt.want {
			t.Errorf("Unexpected output: %q", buf.String())
		}
	})
}

// copyFormat copies its input, optionally prefixed by its argument.
type copyFormat struct {
	prefix   string
	required bool
}

func (f *copyFormat) Output(w io.Writer, r io.Reader) error {
	if _, err := io.WriteString(w, f.prefix); err != nil {
		return err
	}
	_, err := io.Copy(w, r)
	return err
}

type argFormat struct{ copyFormat }

func (f *argFormat) Arg(arg string) error {
	f.prefix = arg
	return nil
}

func (f *argFormat) Required() bool { return f.required }

func newTestFormatter() (*Formatter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	f := New()
	f.Register("", &copyFormat{})
	f.Register("arg", &argFormat{copyFormat{required: true}})
	f.Register("opt", &argFormat{})
	f.SetOut(buf)
	return f, buf
}

func TestFormatterOptions(t *testing.T) {
	f, _ := newTestFormatter()
	want := []string{"arg=...", "opt[=...]"}
	if d := testy.DiffInterface(want, f.options()); d != nil {
		t.Error(d)
	}
}

func TestFormatterOutput(t *testing.T) {
	type tt struct {
		format string
		want   string
		status int
		err    string
	}

	tests := testy.NewTable()
	tests.Add("default", tt{
		want: "{}\n",
	})
	tests.Add("required arg", tt{
		format: "arg=> ",
		want:   "> {}\n",
	})
	tests.Add("missing required arg", tt{
		format: "arg",
		status: errors.ErrUsage,
		err:    "format arg requires an argument",
	})
	tests.Add("optional arg omitted", tt{
		format: "opt",
		want:   "{}\n",
	})
	tests.Add("unknown", tt{
		format: "xml",
		status: errors.ErrUsage,
		err:    "unrecognized output format option: xml",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		f, buf := newTestFormatter()
		f.spec = tt.format
		err := f.Output(strings.NewReader("{}"))
		if !testy.ErrorMatches(tt.err, err) {
			t.Fatalf("Unexpected error: %v", err)
		}
		if code := errors.InspectErrorCode(err); code != tt.status {
			t.Errorf("Unexpected exit status: %d", code)
		}
		if buf.String() != tt.want {
			t.Errorf("Unexpected output: %q", buf.String())
		}
	})
}

func TestFormatterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, _ := newTestFormatter()
	f.path = path
	if err := f.Output(strings.NewReader(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Unexpected file content: %q", got)
	}

	err = f.Output(strings.NewReader(`{}`))
	if code := errors.InspectErrorCode(err); code != errors.ErrCantCreate {
		t.Errorf("Expected existing file to be refused, got %v", err)
	}

	f.overwrite = true
	if err := f.Output(strings.NewReader(`{"b":2}`)); err != nil {
		t.Fatal(err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != `{"b":2}` {
		t.Errorf("Unexpected file content: %q", got)
	}
}

func TestResult(t *testing.T) {
	type tt struct {
		result *Result
		json   string
		text   string
	}

	tests := testy.NewTable()
	tests.Add("value", tt{
		result: Value(map[string]string{"url": "http://a/?b&c"}),
		json:   `{"url":"http://a/?b&c"}`,
		text:   `{"url":"http://a/?b&c"}`,
	})
	tests.Add("text", tt{
		result: Text(`id={{ .ID }}`, struct{ ID string }{ID: "foo"}),
		json:   `{"ID":"foo"}`,
		text:   "id=foo",
	})
	tests.Add("ok", tt{
		result: OK(),
		json:   `{"ok":true}`,
		text:   "OK",
	})
	tests.Add("doc result", tt{
		result: DocResult(&couchcall.DocResult{OK: true, ID: "123", Rev: "1-abc"}),
		json:   `{"ok":true,"id":"123","rev":"1-abc"}`,
		text:   "OK: true\nID: 123\nRev: 1-abc",
	})
	tests.Add("bulk results", tt{
		result: BulkResults([]couchcall.BulkResult{
			{ID: "a", Rev: "1-abc"},
			{ID: "b", Error: "conflict", Reason: "Document update conflict."},
		}),
		json: `[{"id":"a","rev":"1-abc"},{"id":"b","error":"conflict","reason":"Document update conflict."}]`,
		text: "a: 1-abc\nb: conflict (Document update conflict.)\n",
	})
	tests.Add("rows", tt{
		result: Rows(&couchcall.ViewResult{
			TotalRows: 2,
			Rows: []couchcall.Row{
				{ID: "a", Key: json.RawMessage(`"a"`), Value: json.RawMessage(`{"rev":"1-abc"}`)},
				{Key: json.RawMessage(`"b"`), Error: "not_found"},
			},
		}),
		text: "a \"a\" {\"rev\":\"1-abc\"}\n\"b\" not_found\n",
	})
	tests.Add("no rows", tt{
		result: Rows(&couchcall.ViewResult{}),
		text:   "",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		text := &bytes.Buffer{}
		if err := tt.result.RenderText(text); err != nil {
			t.Fatal(err)
		}
		if text.String() != tt.text {
			t.Errorf("Unexpected text: %q", text.String())
		}
		if tt.json == "" {
			return
		}
		body, err := io.ReadAll(tt.result)
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != tt.json {
			t.Errorf("Unexpected JSON: %s", body)
		}
	})
}
