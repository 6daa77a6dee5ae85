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
// Package json renders indented JSON output.
package json

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

type format struct{}

var _ output.Format = &format{}

// New returns the JSON formatter.
func New() output.Format {
	return &format{}
}

func (format) Output(w io.Writer, r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(buf), "", "  "); err != nil {
		return err
	}
	_, err = out.WriteTo(w)
	return err
}
