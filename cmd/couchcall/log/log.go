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

// Package log handles command line logging.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger is the logger used by every command. Info goes to stdout, and
// everything else to stderr.
type Logger interface {
	SetOut(io.Writer)
	SetErr(io.Writer)
	// SetDebug turns debug output on or off.
	SetDebug(bool)

	Debug(...any)
	Debugf(string, ...any)
	Info(...any)
	Infof(string, ...any)
	// Warn logs a recoverable problem, such as a request about to be
	// retried.
	Warn(...any)
	Warnf(string, ...any)
	Error(...any)
	Errorf(string, ...any)
}

const warnPrefix = "Warning: "

type logger struct {
	mu             sync.Mutex
	stdout, stderr io.Writer
	debug          bool
}

var _ Logger = &logger{}

// New returns a logger writing to os.Stdout and os.Stderr.
func New() Logger {
	return &logger{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (l *logger) SetOut(out io.Writer) {
	l.mu.Lock()
	l.stdout = out
	l.mu.Unlock()
}

func (l *logger) SetErr(err io.Writer) {
	l.mu.Lock()
	l.stderr = err
	l.mu.Unlock()
}

func (l *logger) SetDebug(debug bool) {
	l.mu.Lock()
	l.debug = debug
	l.mu.Unlock()
}

func (l *logger) debugging() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

// println writes one trimmed line. Requests may log concurrently, as when
// several databases are created at once.
func (l *logger) println(toStdout bool, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.stderr
	if toStdout {
		w = l.stdout
	}
	_, _ = fmt.Fprintln(w, strings.TrimSpace(line))
}

func (l *logger) Debug(args ...any) {
	if l.debugging() {
		l.println(false, fmt.Sprint(args...))
	}
}

func (l *logger) Debugf(format string, args ...any) {
	if l.debugging() {
		l.println(false, fmt.Sprintf(format, args...))
	}
}

func (l *logger) Info(args ...any) { l.println(true, fmt.Sprint(args...)) }

func (l *logger) Infof(format string, args ...any) { l.println(true, fmt.Sprintf(format, args...)) }

func (l *logger) Warn(args ...any) { l.println(false, warnPrefix+fmt.Sprint(args...)) }

func (l *logger) Warnf(format string, args ...any) {
	l.println(false, warnPrefix+fmt.Sprintf(format, args...))
}

func (l *logger) Error(args ...any) { l.println(false, fmt.Sprint(args...)) }

func (l *logger) Errorf(format string, args ...any) { l.println(false, fmt.Sprintf(format, args...)) }
