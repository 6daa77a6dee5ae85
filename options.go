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

package couchcall

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-kivik/couchcall/chttp"
)

// Option is a configuration value for a client or a single request. Options
// which do not apply to the target they are passed to are ignored.
type Option = chttp.Option

// The client-level options of the request dispatcher.
var (
	// OptionHTTPClient replaces the *http.Client used for requests.
	OptionHTTPClient = chttp.OptionHTTPClient
	// OptionUserAgent appends to the User-Agent header.
	OptionUserAgent = chttp.OptionUserAgent
	// BasicAuth authenticates every request with HTTP Basic Auth.
	BasicAuth = chttp.BasicAuth
	// CookieAuth authenticates with a session cookie, obtained on demand.
	CookieAuth = chttp.CookieAuth
	// OptionHeader adds headers to a single request.
	OptionHeader = chttp.OptionHeader
)

type optionLogger struct {
	*log.Logger
}

var _ Option = (*optionLogger)(nil)

func (o optionLogger) Apply(target interface{}) {
	if client, ok := target.(*Client); ok {
		client.logger = o.Logger
	}
}

// OptionLogger sets the logger used to report failures which no caller
// handled, such as a [Dispatch] with no Error handler. By default the standard
// logger is used.
func OptionLogger(logger *log.Logger) Option {
	return optionLogger{Logger: logger}
}

// Params is a collection of query parameters passed verbatim to the server.
// Values of type string, []string, bool, and any integer type are supported.
type Params map[string]interface{}

var _ Option = Params(nil)

// Apply applies p to target. The following target types are supported:
//
//   - map[string]interface{}
//   - *url.Values
//   - *requestOptions, used internally by every operation
func (p Params) Apply(target interface{}) {
	switch t := target.(type) {
	case map[string]interface{}:
		for k, v := range p {
			t[k] = v
		}
	case *url.Values:
		for key, i := range p {
			var values []string
			switch v := i.(type) {
			case string:
				values = []string{v}
			case []string:
				values = v
			case bool:
				values = []string{fmt.Sprintf("%t", v)}
			case int, uint, uint8, uint16, uint32, uint64, int8, int16, int32, int64:
				values = []string{fmt.Sprintf("%d", v)}
			}
			for _, value := range values {
				t.Add(key, value)
			}
		}
	case *requestOptions:
		p.Apply(&t.query)
	}
}

// requestOptions collects the per-request options of a single operation.
type requestOptions struct {
	query        url.Values
	http         *chttp.Options
	keys         []interface{}
	hasKeys      bool
	allOrNothing bool
	err          error
}

func newRequestOptions(options ...Option) *requestOptions {
	o := &requestOptions{
		query: url.Values{},
		http:  &chttp.Options{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt.Apply(o)
		opt.Apply(o.http)
	}
	return o
}

// httpOptions converts o to request options for the dispatcher. body may be
// nil.
func (o *requestOptions) httpOptions(body interface{}) *chttp.Options {
	opts := &chttp.Options{
		Query:  o.query,
		Header: o.http.Header,
	}
	if body != nil {
		opts.GetBody = chttp.BodyEncoder(body)
	}
	return opts
}

type jsonParam struct {
	name  string
	value interface{}
}

func (p jsonParam) Apply(target interface{}) {
	o, ok := target.(*requestOptions)
	if !ok {
		return
	}
	v, err := json.Marshal(p.value)
	if err != nil {
		o.err = &Error{Status: http.StatusBadRequest, Code: "bad_request", Reason: fmt.Sprintf("invalid %s: %s", p.name, err), Err: err}
		return
	}
	o.query.Set(p.name, string(v))
}

func (p jsonParam) String() string {
	return fmt.Sprintf("[%s:%v]", p.name, p.value)
}

// Key restricts view results to rows matching key. The value is JSON encoded.
func Key(key interface{}) Option {
	return jsonParam{name: "key", value: key}
}

// StartKey returns rows starting with the specified key.
func StartKey(key interface{}) Option {
	return jsonParam{name: "startkey", value: key}
}

// EndKey stops returning rows when the specified key is reached.
func EndKey(key interface{}) Option {
	return jsonParam{name: "endkey", value: key}
}

type keysOption []interface{}

func (k keysOption) Apply(target interface{}) {
	if o, ok := target.(*requestOptions); ok {
		o.keys = k
		o.hasKeys = true
	}
}

// Keys restricts view results to rows matching the given keys, returned in
// the order of keys rather than the natural key order. Keys are sent in the
// request body.
func Keys(keys ...interface{}) Option {
	if keys == nil {
		keys = []interface{}{}
	}
	return keysOption(keys)
}

// Rev requests a specific document revision. When passed to [DB.CopyDoc], it
// is the current revision of the destination document.
func Rev(rev string) Option {
	return Params{"rev": rev}
}

// Revs includes the document's revision history, as _revisions.
func Revs() Option {
	return Params{"revs": true}
}

// Conflicts includes the conflicting revisions of a document, as _conflicts.
func Conflicts() Option {
	return Params{"conflicts": true}
}

// IncludeDocs includes the full document body with each view row.
func IncludeDocs() Option {
	return Params{"include_docs": true}
}

// Descending reverses the order of view results.
func Descending() Option {
	return Params{"descending": true}
}

// Skip skips n rows of view results.
func Skip(n int) Option {
	return Params{"skip": n}
}

// Limit limits view results to n rows.
func Limit(n int) Option {
	return Params{"limit": n}
}

// Reduce enables or disables the reduce function of a view.
func Reduce(reduce bool) Option {
	return Params{"reduce": reduce}
}

// Group groups reduce results by key.
func Group() Option {
	return Params{"group": true}
}

// GroupLevel groups reduce results by the first level elements of array keys.
func GroupLevel(level int) Option {
	return Params{"group_level": level}
}

type allOrNothing bool

func (a allOrNothing) Apply(target interface{}) {
	if o, ok := target.(*requestOptions); ok {
		o.allOrNothing = bool(a)
	}
}

func (a allOrNothing) String() string {
	return fmt.Sprintf("[AllOrNothing:%t]", bool(a))
}

// AllOrNothing sets the all_or_nothing mode of a bulk write. When true,
// conflicting writes create a new branch in the document's revision tree
// rather than failing.
func AllOrNothing(enabled bool) Option {
	return allOrNothing(enabled)
}
