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
// Package input reads document data given on the command line.
package input

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/icza/dyno"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
)

// Input holds the --data, --data-file and --yaml flags.
type Input struct {
	data string
	file string
	yaml bool

	stdin io.Reader
}

// New returns an Input reading - from standard input.
func New() *Input {
	return &Input{stdin: os.Stdin}
}

// ConfigFlags registers the input flags on pf.
func (i *Input) ConfigFlags(pf *pflag.FlagSet) {
	pf.StringVarP(&i.data, "data", "d", "", "JSON document data.")
	pf.StringVarP(&i.file, "data-file", "D", "", "Read document data from the named file. Use - for stdin. Assumed to be JSON, unless the file extension is .yaml or .yml, or the --yaml flag is used.")
	pf.BoolVar(&i.yaml, "yaml", false, "Treat input data as YAML")
}

// SetIn replaces standard input.
func (i *Input) SetIn(r io.Reader) {
	i.stdin = r
}

// HasInput returns true if some input has been provided.
func (i *Input) HasInput() bool {
	return i.data != "" || i.file != ""
}

// As unmarshals the input into target.
func (i *Input) As(target interface{}) error {
	buf, err := i.JSON()
	if err != nil {
		return err
	}
	return errors.Code(errors.ErrData, json.Unmarshal(buf, target))
}

// JSON returns the input as JSON, converting YAML input.
func (i *Input) JSON() ([]byte, error) {
	r, err := i.open()
	if err != nil {
		return nil, err
	}
	defer r.Close() // nolint:errcheck
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Code(errors.ErrIO, err)
	}
	if !i.isYAML() {
		if !json.Valid(buf) {
			return nil, errors.Code(errors.ErrData, "invalid JSON input")
		}
		return buf, nil
	}
	return yaml2json(buf)
}

func (i *Input) isYAML() bool {
	return i.yaml || strings.HasSuffix(i.file, ".yaml") || strings.HasSuffix(i.file, ".yml")
}

func (i *Input) open() (io.ReadCloser, error) {
	if i.data != "" {
		return io.NopCloser(strings.NewReader(i.data)), nil
	}
	switch i.file {
	case "-":
		return io.NopCloser(i.stdin), nil
	case "":
	default:
		f, err := os.Open(i.file)
		if err != nil {
			return nil, errors.Code(errors.ErrNoInput, err)
		}
		return f, nil
	}
	return nil, errors.Code(errors.ErrUsage, "no document data provided")
}

func yaml2json(buf []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Code(errors.ErrData, err)
	}
	out, err := json.Marshal(dyno.ConvertMapI2MapS(doc))
	return out, errors.Code(errors.ErrData, err)
}
