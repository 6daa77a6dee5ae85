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

type get struct {
	*root
	rev       string
	revs      bool
	conflicts bool
}

func getCmd(r *root) *cobra.Command {
	c := &get{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "get [docid]",
		Short: "Fetch a document",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
	f := cmd.Flags()
	f.StringVarP(&c.rev, "rev", "r", "", "Fetch a specific revision")
	f.BoolVar(&c.revs, "revs", false, "Include the revision history")
	f.BoolVar(&c.conflicts, "conflicts", false, "Include conflicting revisions")
	return cmd
}

func (c *get) RunE(cmd *cobra.Command, args []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	opts := []couchcall.Option{c.opts()}
	if c.rev != "" {
		opts = append(opts, couchcall.Rev(c.rev))
	}
	if c.revs {
		opts = append(opts, couchcall.Revs())
	}
	if c.conflicts {
		opts = append(opts, couchcall.Conflicts())
	}
	c.log.Debugf("[get] Will fetch document: %s/%s", db.URI(), args[0])
	return c.retry(func() error {
		doc, err := db.OpenDoc(cmd.Context(), args[0], opts...)
		if err != nil {
			return err
		}
		return c.fmt.Output(output.Value(doc))
	})
}

type put struct {
	*root
	*input.Input
}

func putCmd(r *root) *cobra.Command {
	c := &put{
		root:  r,
		Input: input.New(),
	}
	cmd := &cobra.Command{
		Use:   "put [docid]",
		Short: "Create or update a document",
		Long: `Save the document given with --data or --data-file. If docid is given
it sets the document's _id; otherwise the document's own _id is used, or the
server assigns one. Updates must carry the current _rev.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.RunE,
	}
	c.ConfigFlags(cmd.Flags())
	return cmd
}

func (c *put) RunE(cmd *cobra.Command, args []string) error {
	c.SetIn(cmd.InOrStdin())
	var doc couchcall.Document
	if err := c.As(&doc); err != nil {
		return err
	}
	if doc == nil {
		return errors.Code(errors.ErrData, "document must be a JSON object")
	}
	if len(args) > 0 {
		doc["_id"] = args[0]
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		res, err := db.SaveDoc(cmd.Context(), doc, c.opts())
		if err != nil {
			return err
		}
		return c.fmt.Output(output.DocResult(res))
	})
}

type deleteDoc struct {
	*root
	rev string
}

func deleteCmd(r *root) *cobra.Command {
	c := &deleteDoc{
		root: r,
	}
	cmd := &cobra.Command{
		Use:     "delete [docid]",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Long: `Delete a document. Without --rev, the current revision is fetched
first.`,
		Args: cobra.ExactArgs(1),
		RunE: c.RunE,
	}
	cmd.Flags().StringVarP(&c.rev, "rev", "r", "", "Revision to delete")
	return cmd
}

func (c *deleteDoc) RunE(cmd *cobra.Command, args []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return c.retry(func() error {
		rev := c.rev
		if rev == "" {
			doc, err := db.OpenDoc(ctx, args[0])
			if err != nil {
				return err
			}
			rev = doc.Rev()
			c.log.Debugf("[delete] Current revision of %s is %s", args[0], rev)
		}
		res, err := db.RemoveDoc(ctx, couchcall.Document{"_id": args[0], "_rev": rev})
		if err != nil {
			return err
		}
		return c.fmt.Output(output.DocResult(res))
	})
}

type copyDoc struct {
	*root
	rev string
}

func copyCmd(r *root) *cobra.Command {
	c := &copyDoc{
		root: r,
	}
	cmd := &cobra.Command{
		Use:     "copy [source] [target]",
		Aliases: []string{"cp"},
		Short:   "Copy a document",
		Long: `Copy the current revision of source to target. To overwrite an
existing target, pass its current revision with --rev.`,
		Args: cobra.ExactArgs(2), // nolint:gomnd
		RunE: c.RunE,
	}
	cmd.Flags().StringVarP(&c.rev, "rev", "r", "", "Current revision of the target document")
	return cmd
}

func (c *copyDoc) RunE(cmd *cobra.Command, args []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	var opts []couchcall.Option
	if c.rev != "" {
		opts = append(opts, couchcall.Rev(c.rev))
	}
	c.log.Debugf("[copy] From: %s, To: %s", args[0], args[1])
	return c.retry(func() error {
		res, err := db.CopyDoc(cmd.Context(), args[0], args[1], opts...)
		if err != nil {
			return err
		}
		return c.fmt.Output(output.DocResult(res))
	})
}
