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
package json

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := New().Output(buf, strings.NewReader(`{"ok":true,"rows":[1]}`+"\n")); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"ok\": true,\n  \"rows\": [\n    1\n  ]\n}"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestOutputInvalid(t *testing.T) {
	err := New().Output(&bytes.Buffer{}, strings.NewReader(`{`))
	if err == nil {
		t.Error("Expected an error for truncated JSON")
	}
}
