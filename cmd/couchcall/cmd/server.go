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
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
)

type ping struct {
	*root
}

func pingCmd(r *root) *cobra.Command {
	c := &ping{
		root: r,
	}
	return &cobra.Command{
		Use:   "ping",
		Short: "Fetch the server welcome message",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *ping) RunE(cmd *cobra.Command, _ []string) error {
	client, err := c.couch()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		info, err := client.ServerInfo(cmd.Context())
		if err != nil {
			return err
		}
		format := `{{ .CouchDB }} version {{ .Version }}`
		return c.fmt.Output(output.Text(format, info))
	})
}

type allDBs struct {
	*root
}

func allDBsCmd(r *root) *cobra.Command {
	c := &allDBs{
		root: r,
	}
	return &cobra.Command{
		Use:     "all-dbs",
		Aliases: []string{"dbs"},
		Short:   "List all databases",
		Args:    cobra.NoArgs,
		RunE:    c.RunE,
	}
}

func (c *allDBs) RunE(cmd *cobra.Command, _ []string) error {
	client, err := c.couch()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		dbs, err := client.AllDBs(cmd.Context())
		if err != nil {
			return err
		}
		format := `{{ range . }}{{ . }}
{{ end }}`
		return c.fmt.Output(output.Text(format, dbs))
	})
}

type uuids struct {
	*root
	count int
}

func uuidsCmd(r *root) *cobra.Command {
	c := &uuids{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "uuids",
		Short: "Fetch server-generated UUIDs",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
	cmd.Flags().IntVarP(&c.count, "count", "n", 1, "Number of UUIDs to fetch")
	return cmd
}

func (c *uuids) RunE(cmd *cobra.Command, _ []string) error {
	if c.count < 1 {
		return errors.Code(errors.ErrUsage, "count must be positive")
	}
	client, err := c.couch()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		ids, err := client.UUIDs(cmd.Context(), c.count)
		if err != nil {
			return err
		}
		return c.fmt.Output(output.Text(`{{ range . }}{{ . }}
{{ end }}`, ids))
	})
}

type tasks struct {
	*root
}

func tasksCmd(r *root) *cobra.Command {
	c := &tasks{
		root: r,
	}
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the server's active tasks",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *tasks) RunE(cmd *cobra.Command, _ []string) error {
	client, err := c.couch()
	if err != nil {
		return err
	}
	return c.retry(func() error {
		active, err := client.ActiveTasks(cmd.Context())
		if err != nil {
			return err
		}
		if active == nil {
			active = []couchcall.ActiveTask{}
		}
		return c.fmt.Output(output.Value(active))
	})
}

type session struct {
	*root
	login  bool
	logout bool
}

func sessionCmd(r *root) *cobra.Command {
	c := &session{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the current session",
		Long: `Show the user the server sees for this connection. With --login, a
cookie session is first started with the configured credentials.`,
		Args: cobra.NoArgs,
		RunE: c.RunE,
	}
	f := cmd.Flags()
	f.BoolVar(&c.login, "login", false, "Start a cookie session with the configured user and password first")
	f.BoolVar(&c.logout, "logout", false, "End the cookie session afterwards")
	return cmd
}

func (c *session) RunE(cmd *cobra.Command, _ []string) error {
	client, err := c.couch()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if c.login {
		if c.conf.User == "" {
			return errors.Code(errors.ErrUsage, "--login requires a user")
		}
		if _, err := client.Login(ctx, c.conf.User, c.conf.Password); err != nil {
			return err
		}
		c.log.Debugf("Logged in as %s", c.conf.User)
	}
	var sess *couchcall.Session
	err = c.retry(func() error {
		var err error
		sess, err = client.Session(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if c.logout {
		if _, err := client.Logout(ctx); err != nil {
			return err
		}
	}
	data := struct {
		Name   string   `json:"name"`
		Roles  []string `json:"roles"`
		Method string   `json:"authenticated,omitempty"`
	}{
		Name:   sess.Name,
		Roles:  sess.Roles,
		Method: sess.AuthenticationMethod,
	}
	if data.Roles == nil {
		data.Roles = []string{}
	}
	format := `{{ if .Name }}{{ .Name }}{{ else }}anonymous{{ end }} [{{ range $i, $r := .Roles }}{{ if $i }}, {{ end }}{{ $r }}{{ end }}]`
	return c.fmt.Output(output.Text(format, data))
}
