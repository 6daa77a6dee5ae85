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
	stdlog "log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/log"
	"github.com/go-kivik/couchcall/internal/couchtest"
)

const shutdownTimeout = 5 * time.Second

type serve struct {
	*root
	listen string
	users  []string
}

func serveCmd(r *root) *cobra.Command {
	c := &serve{
		root: r,
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory CouchDB",
		Long: `Serve an in-memory server speaking the CouchDB 1.x HTTP API, until
interrupted. Nothing is persisted. Without --user, every request is treated as
coming from an admin.`,
		Args: cobra.NoArgs,
		RunE: c.RunE,
	}
	f := cmd.Flags()
	f.StringVarP(&c.listen, "listen", "l", "localhost:5984", "Address to listen on")
	f.StringArrayVar(&c.users, "add-user", nil, "User to accept, as name:password[:role,...]. May be repeated.")
	return cmd
}

// logWriter adapts Logger for the standard library logger used by the
// server.
type logWriter struct {
	log.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.Logger.Error(string(p))
	return len(p), nil
}

func parseUser(spec string) (couchtest.Option, error) {
	parts := strings.SplitN(spec, ":", 3) // nolint:gomnd
	if len(parts) < 2 || parts[0] == "" { // nolint:gomnd
		return nil, errors.Codef(errors.ErrUsage, "invalid user %q; expected name:password[:roles]", spec)
	}
	var roles []string
	if len(parts) == 3 && parts[2] != "" { // nolint:gomnd
		roles = strings.Split(parts[2], ",")
	}
	return couchtest.WithUser(parts[0], parts[1], roles...), nil
}

func (c *serve) RunE(cmd *cobra.Command, _ []string) error {
	opts := []couchtest.Option{
		couchtest.WithLogger(stdlog.New(logWriter{c.log}, "", 0)),
	}
	for _, spec := range c.users {
		opt, err := parseUser(spec)
		if err != nil {
			return err
		}
		opts = append(opts, opt)
	}

	ln, err := net.Listen("tcp", c.listen)
	if err != nil {
		return errors.Code(errors.ErrUnavailable, err)
	}
	srv := &http.Server{
		Handler:           couchtest.New(opts...),
		ReadHeaderTimeout: 10 * time.Second, // nolint:gomnd
	}
	c.log.Infof("Serving CouchDB %s API on http://%s/", couchtest.Version, ln.Addr())

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return errors.Code(errors.ErrUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		c.log.Debug("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
