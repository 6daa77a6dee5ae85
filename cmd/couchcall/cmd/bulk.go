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
	"github.com/spf13/cobra"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/input"
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

type bulk struct {
	*root
	*input.Input
	allOrNothing bool
	remove       bool
}

func bulkCmd(r *root) *cobra.Command {
	c := &bulk{
		root:  r,
		Input: input.New(),
	}
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Save or delete many documents in one request",
		Long: `Save the array of documents given with --data or --data-file. With
--remove, each document must carry _id and _rev and is deleted instead.

Each document succeeds or fails on its own, unless --all-or-nothing is given.
The exit status is non-zero if any document failed.`,
		Args: cobra.NoArgs,
		RunE: c.RunE,
	}
	f := cmd.Flags()
	c.ConfigFlags(f)
	f.BoolVar(&c.allOrNothing, "all-or-nothing", false, "Apply every document or none")
	f.BoolVar(&c.remove, "remove", false, "Delete the documents")
	return cmd
}

func (c *bulk) RunE(cmd *cobra.Command, _ []string) error {
	c.SetIn(cmd.InOrStdin())
	var docs []interface{}
	if err := c.As(&docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.Code(errors.ErrData, "no documents provided")
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	opts := []couchcall.Option{couchcall.AllOrNothing(c.allOrNothing)}
	var results []couchcall.BulkResult
	err = c.retry(func() error {
		var err error
		if c.remove {
			results, err = db.BulkRemove(cmd.Context(), docs, opts...)
		} else {
			results, err = db.BulkSave(cmd.Context(), docs, opts...)
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := c.fmt.Output(output.BulkResults(results)); err != nil {
		return err
	}
	for _, res := range results {
		if err := res.Err(); err != nil {
			return errors.HTTPStatus(couchcall.HTTPStatus(err), err)
		}
	}
	return nil
}
