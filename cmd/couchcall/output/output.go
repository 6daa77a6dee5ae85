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

// Package output renders command results in the format chosen on the command
// line, to stdout or to a file.
package output

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
)

// Format writes the JSON read from r to w in its own format.
type Format interface {
	Output(w io.Writer, r io.Reader) error
}

// FormatArg is implemented by formats which accept an argument, given as
// --format name=arg.
type FormatArg interface {
	Arg(string) error
	// Required reports whether the argument is mandatory.
	Required() bool
}

// Formatter holds the registered formats, and the destination selected with
// the --format, --output and --overwrite flags.
type Formatter struct {
	mu      sync.Mutex
	formats map[string]Format
	stdout  io.Writer

	spec      string
	path      string
	overwrite bool

	selected Format
}

// New returns a formatter with no formats registered.
func New() *Formatter {
	return &Formatter{
		formats: make(map[string]Format),
		stdout:  os.Stdout,
	}
}

// Register adds a format. The format registered as "" is used when --format
// is not given. Registering a name twice panics.
func (f *Formatter) Register(name string, format Format) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dupe := f.formats[name]; dupe {
		panic("output format " + name + " registered twice")
	}
	f.formats[name] = format
}

// options describes the registered formats for the help text, sorted.
func (f *Formatter) options() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts := make([]string, 0, len(f.formats))
	for name, format := range f.formats {
		if name == "" {
			continue
		}
		if arg, ok := format.(FormatArg); ok {
			if arg.Required() {
				name += "=..."
			} else {
				name += "[=...]"
			}
		}
		opts = append(opts, name)
	}
	sort.Strings(opts)
	return opts
}

// ConfigFlags adds the output flags to fs. Formats must be registered first.
func (f *Formatter) ConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.spec, "format", "f", "", "Output format. One of: "+strings.Join(f.options(), "|"))
	fs.StringVarP(&f.path, "output", "o", "", "Write output to this file instead of stdout.")
	fs.BoolVarP(&f.overwrite, "overwrite", "F", false, "Replace the --output file if it exists")
}

// SetOut sets the destination used when no output file is given.
func (f *Formatter) SetOut(w io.Writer) {
	f.mu.Lock()
	f.stdout = w
	f.mu.Unlock()
}

// Validate resolves --format, so that a bad value is reported before any
// request is made.
func (f *Formatter) Validate() error {
	format, err := f.resolve()
	if err != nil {
		return errors.Code(errors.ErrUsage, err)
	}
	f.selected = format
	return nil
}

func (f *Formatter) resolve() (Format, error) {
	name, arg, hasArg := strings.Cut(f.spec, "=")
	format, ok := f.formats[name]
	if !ok {
		return nil, errors.Codef(errors.ErrUsage, "unrecognized output format option: %s", name)
	}
	withArg, takesArg := format.(FormatArg)
	switch {
	case takesArg && hasArg:
		if err := withArg.Arg(arg); err != nil {
			return nil, err
		}
	case takesArg && withArg.Required():
		return nil, errors.Codef(errors.ErrUsage, "format %s requires an argument", name)
	case hasArg:
		return nil, errors.Codef(errors.ErrUsage, "format %s takes no arguments", name)
	}
	return format, nil
}

// Output renders r, which must read as JSON. Results with a text form
// implement [TextRenderer].
func (f *Formatter) Output(r io.Reader) error {
	if f.selected == nil {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	w, err := f.destination()
	if err != nil {
		return err
	}
	if err := f.selected.Output(w, r); err != nil {
		_ = w.Close()
		return errors.Code(errors.ErrIO, err)
	}
	return errors.Code(errors.ErrIO, w.Close())
}

func (f *Formatter) destination() (io.WriteCloser, error) {
	if f.path == "" || f.path == "-" {
		f.mu.Lock()
		defer f.mu.Unlock()
		return &terminated{w: f.stdout}, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if f.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(f.path, flags, 0o666) //nolint:gomnd
	if err != nil {
		return nil, errors.Code(errors.ErrCantCreate, err)
	}
	return file, nil
}

// terminated ends terminal output with a newline, if the format did not
// write one. The underlying writer is left open.
type terminated struct {
	w       io.Writer
	written bool
	last    byte
}

func (t *terminated) Write(p []byte) (int, error) {
	if len(p) > 0 {
		t.written = true
		t.last = p[len(p)-1]
	}
	return t.w.Write(p)
}

func (t *terminated) Close() error {
	if t.written && t.last == '\n' {
		return nil
	}
	_, err := io.WriteString(t.w, "\n")
	return err
}
