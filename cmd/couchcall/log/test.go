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
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestLogger is a Logger test double. Use Check to validate the logs
// collected.
type TestLogger struct {
	mu    sync.Mutex
	debug bool
	logs  []string
}

var _ Logger = &TestLogger{}

// NewTest returns a new test logger.
func NewTest() *TestLogger {
	return &TestLogger{
		logs: []string{},
	}
}

func (l *TestLogger) log(level, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, fmt.Sprintf("[%s] %s",
		level,
		strings.TrimSpace(line),
	))
}

func (*TestLogger) SetOut(io.Writer) {}
func (*TestLogger) SetErr(io.Writer) {}

func (l *TestLogger) SetDebug(debug bool) {
	l.mu.Lock()
	l.debug = debug
	l.mu.Unlock()
}

func (l *TestLogger) Debug(args ...any) {
	if l.debugging() {
		l.log("DEBUG", fmt.Sprint(args...))
	}
}

func (l *TestLogger) Debugf(format string, args ...any) {
	if l.debugging() {
		l.log("DEBUG", fmt.Sprintf(format, args...))
	}
}

func (l *TestLogger) debugging() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *TestLogger) Info(args ...any) {
	l.log("INFO", fmt.Sprint(args...))
}

func (l *TestLogger) Infof(format string, args ...any) {
	l.log("INFO", fmt.Sprintf(format, args...))
}

func (l *TestLogger) Warn(args ...any) {
	l.log("WARN", fmt.Sprint(args...))
}

func (l *TestLogger) Warnf(format string, args ...any) {
	l.log("WARN", fmt.Sprintf(format, args...))
}

func (l *TestLogger) Error(args ...any) {
	l.log("ERROR", fmt.Sprint(args...))
}

func (l *TestLogger) Errorf(format string, args ...any) {
	l.log("ERROR", fmt.Sprintf(format, args...))
}

// Logs returns a copy of the lines logged so far.
func (l *TestLogger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.logs...)
}

// Check compares the logs received against want.
func (l *TestLogger) Check(t *testing.T, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if d := cmp.Diff(want, l.Logs()); d != "" {
		t.Errorf("Unexpected logs (-want +got):\n%s", d)
	}
}
