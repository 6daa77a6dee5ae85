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
package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/input"
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

type getProp struct {
	*root
}

func getPropCmd(r *root) *cobra.Command {
	c := &getProp{
		root: r,
	}
	return &cobra.Command{
		Use:   "get-prop [name]",
		Short: "Read a database property, such as _revs_limit",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
}

func (c *getProp) RunE(cmd *cobra.Command, args []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		var value json.RawMessage
		if err := db.GetDBProperty(cmd.Context(), args[0], &value); err != nil {
			return err
		}
		return c.fmt.Output(output.Value(value))
	})
}

type setProp struct {
	*root
	*input.Input
}

func setPropCmd(r *root) *cobra.Command {
	c := &setProp{
		root:  r,
		Input: input.New(),
	}
	cmd := &cobra.Command{
		Use:   "set-prop [name] [value]",
		Short: "Set a database property, such as _revs_limit",
		Long: `Set a database property. The value is JSON, given as the second
argument or with --data or --data-file.`,
		Args: cobra.RangeArgs(1, 2), // nolint:gomnd
		RunE: c.RunE,
	}
	c.ConfigFlags(cmd.Flags())
	return cmd
}

func (c *setProp) RunE(cmd *cobra.Command, args []string) error {
	c.SetIn(cmd.InOrStdin())
	var raw []byte
	switch {
	case len(args) == 2 && c.HasInput():
		return errors.Code(errors.ErrUsage, "value given both as argument and input")
	case len(args) == 2:
		raw = []byte(args[1])
		if !json.Valid(raw) {
			return errors.Codef(errors.ErrData, "invalid JSON value: %s", args[1])
		}
	default:
		var err error
		if raw, err = c.JSON(); err != nil {
			return err
		}
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		if _, err := db.SetDBProperty(cmd.Context(), args[0], json.RawMessage(raw)); err != nil {
			return err
		}
		return c.fmt.Output(output.OK())
	})
}
