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

// Package yaml renders output as YAML, keeping the field order of the JSON
// result, so that _id and _rev stay first.
package yaml

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

type yamlFormat struct{}

var _ output.Format = yamlFormat{}

// New returns the yaml formatter.
func New() output.Format {
	return yamlFormat{}
}

func (yamlFormat) Output(w io.Writer, r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	doc, err := decodeNode(dec)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:gomnd
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// decodeNode reads the next JSON value from dec as a YAML node.
func decodeNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		return decodeCollection(dec, t)
	case string:
		return scalar("!!str", t), nil
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return scalar("!!float", t.String()), nil
		}
		return scalar("!!int", t.String()), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(t)), nil
	case nil:
		return scalar("!!null", "null"), nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

func decodeCollection(dec *json.Decoder, open json.Delim) (*yaml.Node, error) {
	var node *yaml.Node
	switch open {
	case '{':
		node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	case '[':
		node = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	default:
		return nil, fmt.Errorf("unexpected JSON delimiter %v", open)
	}
	for dec.More() {
		if node.Kind == yaml.MappingNode {
			key, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, _ := key.(string)
			node.Content = append(node.Content, scalar("!!str", name))
		}
		value, err := decodeNode(dec)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, value)
	}
	// The closing delimiter.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
