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
	"context"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

// maxConcurrentDBs limits the requests in flight for create-db and drop-db.
const maxConcurrentDBs = 4

// dbResult is the per-database outcome of create-db and drop-db.
type dbResult struct {
	DB     string `json:"db"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type dbAction struct {
	*root
	verb   string
	action func(ctx context.Context, db *couchcall.DB) error
}

// run applies the action to every named database concurrently. Each
// database is reported; the exit status reflects the first failure.
func (c *dbAction) run(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		if c.conf.Database == "" {
			return errors.Code(errors.ErrUsage, "no database specified")
		}
		names = []string{c.conf.Database}
	}
	client, err := c.couch()
	if err != nil {
		return err
	}
	results := make([]dbResult, len(names))
	var (
		mu       sync.Mutex
		firstErr error
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(maxConcurrentDBs)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			c.log.Debugf("%s database %s", c.verb, name)
			err := c.retry(func() error {
				return c.action(ctx, client.DB(name))
			})
			results[i] = dbResult{DB: name, OK: err == nil}
			if err != nil {
				var cerr *couchcall.Error
				if errors.As(err, &cerr) {
					results[i].Error, results[i].Reason = cerr.Code, cerr.Reason
				} else {
					results[i].Error = err.Error()
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			// Failures are collected rather than returned, so that one
			// failure does not cancel the remaining databases.
			return nil
		})
	}
	_ = g.Wait()
	if len(names) == 1 {
		if firstErr != nil {
			return firstErr
		}
		return c.fmt.Output(output.OK())
	}
	format := `{{ range . }}{{ .DB }}: {{ if .OK }}OK{{ else }}{{ .Error }}{{ if .Reason }} ({{ .Reason }}){{ end }}{{ end }}
{{ end }}`
	if err := c.fmt.Output(output.Text(format, results)); err != nil {
		return err
	}
	return firstErr
}

func createDBCmd(r *root) *cobra.Command {
	c := &dbAction{
		root: r,
		verb: "Creating",
		action: func(ctx context.Context, db *couchcall.DB) error {
			_, err := db.Create(ctx, r.opts())
			return err
		},
	}
	return &cobra.Command{
		Use:     "create-db [name...]",
		Aliases: []string{"createdb"},
		Short:   "Create one or more databases",
		Long:    `Create the named databases, or the configured database if none are named.`,
		RunE:    c.run,
	}
}

func dropDBCmd(r *root) *cobra.Command {
	c := &dbAction{
		root: r,
		verb: "Dropping",
		action: func(ctx context.Context, db *couchcall.DB) error {
			_, err := db.Drop(ctx)
			return err
		},
	}
	return &cobra.Command{
		Use:     "drop-db [name...]",
		Aliases: []string{"dropdb"},
		Short:   "Delete one or more databases",
		Long:    `Delete the named databases, or the configured database if none are named.`,
		RunE:    c.run,
	}
}

type info struct {
	*root
}

func infoCmd(r *root) *cobra.Command {
	c := &info{
		root: r,
	}
	return &cobra.Command{
		Use:   "info",
		Short: "Show database metadata",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *info) RunE(cmd *cobra.Command, _ []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		dbInfo, err := db.Info(cmd.Context())
		if err != nil {
			return err
		}
		format := `{{ .Name }}: {{ .DocCount }} docs, {{ .DeletedCount }} deleted, update_seq {{ .UpdateSeq }}`
		return c.fmt.Output(output.Text(format, dbInfo))
	})
}

type compact struct {
	*root
}

func compactCmd(r *root) *cobra.Command {
	c := &compact{
		root: r,
	}
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the database",
		Long:  `Start compaction of the database, discarding old document revisions.`,
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *compact) RunE(cmd *cobra.Command, _ []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	c.log.Debugf("[post] Will compact: %s", db.URI())
	return c.retry(func() error {
		if _, err := db.Compact(cmd.Context()); err != nil {
			return err
		}
		return c.fmt.Output(output.OK())
	})
}

type compactView struct {
	*root
}

func compactViewCmd(r *root) *cobra.Command {
	c := &compactView{
		root: r,
	}
	return &cobra.Command{
		Use:     "compact-view [ddoc]",
		Aliases: []string{"cv"},
		Short:   "Compact the views of a design document",
		Args:    cobra.ExactArgs(1),
		RunE:    c.RunE,
	}
}

func (c *compactView) RunE(cmd *cobra.Command, args []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	c.log.Debugf("[post] Will compact views of %s in %s", args[0], db.URI())
	return c.retry(func() error {
		if _, err := db.CompactView(cmd.Context(), args[0]); err != nil {
			return err
		}
		return c.fmt.Output(output.OK())
	})
}

type viewCleanup struct {
	*root
}

func viewCleanupCmd(r *root) *cobra.Command {
	c := &viewCleanup{
		root: r,
	}
	return &cobra.Command{
		Use:   "view-cleanup",
		Short: "Remove unused view index files",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *viewCleanup) RunE(cmd *cobra.Command, _ []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		if _, err := db.ViewCleanup(cmd.Context()); err != nil {
			return err
		}
		return c.fmt.Output(output.OK())
	})
}
