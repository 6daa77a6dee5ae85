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

package chttp

import (
	"net/url"
	"strings"
)

// reservedPrefixes keep their slash unescaped, so that design and local
// documents resolve to their own handlers.
var reservedPrefixes = []string{"_design/", "_local/"}

// EncodeDocID escapes a document ID for use as a path. Apart from the slash
// of a _design/ or _local/ prefix, every reserved character is escaped,
// slashes included, and a space becomes %20.
func EncodeDocID(docID string) string {
	var prefix string
	for _, p := range reservedPrefixes {
		if rest, ok := strings.CutPrefix(docID, p); ok {
			prefix, docID = p, rest
			break
		}
	}
	return prefix + strings.ReplaceAll(url.QueryEscape(docID), "+", "%20")
}

// EncodeDBName escapes a database name for use as a single path segment.
// Database names may contain '/', which must be sent as %2F.
func EncodeDBName(name string) string {
	return url.PathEscape(name)
}
