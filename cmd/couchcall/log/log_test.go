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
package log

import (
	"bytes"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	l := New()
	l.SetOut(stdout)
	l.SetErr(stderr)

	l.Debug("hidden")
	l.Info("  info ")
	l.Errorf("error %d", 1)
	l.Warnf("retry %d", 2)
	l.SetDebug(true)
	l.Debugf("debug %s", "shown")

	if got, want := stdout.String(), "info\n"; got != want {
		t.Errorf("stdout: want %q, got %q", want, got)
	}
	if got, want := stderr.String(), "error 1\nWarning: retry 2\ndebug shown\n"; got != want {
		t.Errorf("stderr: want %q, got %q", want, got)
	}
}

func TestTestLogger(t *testing.T) {
	l := NewTest()
	l.Debug("hidden")
	l.SetDebug(true)
	l.Debugf("shown %d", 1)
	l.Info("info")
	l.Warn("careful")
	l.Error("oops")
	l.Check(t, "[DEBUG] shown 1", "[INFO] info", "[WARN] careful", "[ERROR] oops")
}
