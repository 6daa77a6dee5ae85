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
	"github.com/spf13/pflag"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

// viewFlags are the query flags shared by query, view and all-docs.
type viewFlags struct {
	key, startKey, endKey string
	keys                  string
	includeDocs           bool
	descending            bool
	skip, limit           int
	reduce                bool
	group                 bool
	groupLevel            int

	flags *pflag.FlagSet
}

func (v *viewFlags) ConfigFlags(f *pflag.FlagSet, reduce bool) {
	v.flags = f
	f.StringVar(&v.key, "key", "", "Only return rows matching this JSON key")
	f.StringVar(&v.startKey, "startkey", "", "Start at this JSON key")
	f.StringVar(&v.endKey, "endkey", "", "End at this JSON key")
	f.StringVar(&v.keys, "keys", "", "JSON array of keys to fetch, in order")
	f.BoolVar(&v.includeDocs, "include-docs", false, "Include the document of each row")
	f.BoolVar(&v.descending, "descending", false, "Reverse the row order")
	f.IntVar(&v.skip, "skip", 0, "Skip this many rows")
	f.IntVar(&v.limit, "limit", 0, "Return at most this many rows")
	if reduce {
		f.BoolVar(&v.reduce, "reduce", true, "Use the reduce function, if the view has one")
		f.BoolVar(&v.group, "group", false, "Group reduce results by key")
		f.IntVar(&v.groupLevel, "group-level", 0, "Group reduce results by this many array key elements")
	}
}

func jsonFlag(name, value string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, errors.Codef(errors.ErrUsage, "invalid JSON for --%s: %s", name, err)
	}
	return v, nil
}

func (v *viewFlags) viewOptions() ([]couchcall.Option, error) {
	var opts []couchcall.Option
	changed := v.flags.Changed
	for _, kf := range []struct {
		name, value string
		opt         func(interface{}) couchcall.Option
	}{
		{"key", v.key, couchcall.Key},
		{"startkey", v.startKey, couchcall.StartKey},
		{"endkey", v.endKey, couchcall.EndKey},
	} {
		if !changed(kf.name) {
			continue
		}
		key, err := jsonFlag(kf.name, kf.value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kf.opt(key))
	}
	if changed("keys") {
		var keys []interface{}
		if err := json.Unmarshal([]byte(v.keys), &keys); err != nil {
			return nil, errors.Codef(errors.ErrUsage, "--keys must be a JSON array: %s", err)
		}
		opts = append(opts, couchcall.Keys(keys...))
	}
	if v.includeDocs {
		opts = append(opts, couchcall.IncludeDocs())
	}
	if v.descending {
		opts = append(opts, couchcall.Descending())
	}
	if changed("skip") {
		opts = append(opts, couchcall.Skip(v.skip))
	}
	if changed("limit") {
		opts = append(opts, couchcall.Limit(v.limit))
	}
	if changed("reduce") {
		opts = append(opts, couchcall.Reduce(v.reduce))
	}
	if v.group {
		opts = append(opts, couchcall.Group())
	}
	if changed("group-level") {
		opts = append(opts, couchcall.GroupLevel(v.groupLevel))
	}
	return opts, nil
}

func (r *root) outputRows(result *couchcall.ViewResult) error {
	return r.fmt.Output(output.Rows(result))
}

type query struct {
	*root
	viewFlags
	mapFn, reduceFn, language string
}

func queryCmd(r *root) *cobra.Command {
	c := &query{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a temporary view",
		Long: `Run an ad-hoc map function, and optional reduce function, over every
document in the database.`,
		Args: cobra.NoArgs,
		RunE: c.RunE,
	}
	f := cmd.Flags()
	f.StringVarP(&c.mapFn, "map", "m", "", "Map function source")
	f.StringVarP(&c.reduceFn, "reduce-fn", "R", "", "Reduce function source, or a builtin such as _count")
	f.StringVar(&c.language, "language", "javascript", "Function language")
	c.viewFlags.ConfigFlags(f, true)
	return cmd
}

func (c *query) RunE(cmd *cobra.Command, _ []string) error {
	if c.mapFn == "" {
		return errors.Code(errors.ErrUsage, "--map is required")
	}
	opts, err := c.viewOptions()
	if err != nil {
		return err
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		result, err := db.Query(cmd.Context(), c.mapFn, c.reduceFn, c.language, append(opts, c.opts())...)
		if err != nil {
			return err
		}
		return c.outputRows(result)
	})
}

type view struct {
	*root
	viewFlags
}

func viewCmd(r *root) *cobra.Command {
	c := &view{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "view [ddoc/view]",
		Short: "Query a view stored in a design document",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
	c.viewFlags.ConfigFlags(cmd.Flags(), true)
	return cmd
}

func (c *view) RunE(cmd *cobra.Command, args []string) error {
	opts, err := c.viewOptions()
	if err != nil {
		return err
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		result, err := db.View(cmd.Context(), args[0], append(opts, c.opts())...)
		if err != nil {
			return err
		}
		return c.outputRows(result)
	})
}

type allDocs struct {
	*root
	viewFlags
	design bool
}

func allDocsCmd(r *root) *cobra.Command {
	c := &allDocs{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "all-docs",
		Short: "List the documents of the database",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
	c.viewFlags.ConfigFlags(cmd.Flags(), false)
	cmd.Flags().BoolVar(&c.design, "design", false, "List only design documents")
	return cmd
}

func (c *allDocs) RunE(cmd *cobra.Command, _ []string) error {
	opts, err := c.viewOptions()
	if err != nil {
		return err
	}
	db, err := c.db()
	if err != nil {
		return err
	}
	opts = append(opts, c.opts())
	return c.retry(func() error {
		var result *couchcall.ViewResult
		var err error
		if c.design {
			result, err = db.AllDesignDocs(cmd.Context(), opts...)
		} else {
			result, err = db.AllDocs(cmd.Context(), opts...)
		}
		if err != nil {
			return err
		}
		return c.outputRows(result)
	})
}

type apps struct {
	*root
}

func appsCmd(r *root) *cobra.Command {
	c := &apps{
		root: r,
	}
	return &cobra.Command{
		Use:   "apps",
		Short: "List the applications served from design documents",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *apps) RunE(cmd *cobra.Command, _ []string) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	type app struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	return c.retry(func() error {
		list := []app{}
		err := db.AllApps(cmd.Context(), func(a couchcall.App) {
			list = append(list, app{Name: a.Name, Path: a.Path})
		})
		if err != nil {
			return err
		}
		format := `{{ range . }}{{ .Name }} {{ .Path }}
{{ end }}`
		return c.fmt.Output(output.Text(format, list))
	})
}
