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
// Package cmd implements the couchcall command line.
package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/chttp"
	"github.com/go-kivik/couchcall/cmd/couchcall/config"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
	"github.com/go-kivik/couchcall/cmd/couchcall/log"
	"github.com/go-kivik/couchcall/cmd/couchcall/output"
	"github.com/go-kivik/couchcall/cmd/couchcall/output/friendly"
	"github.com/go-kivik/couchcall/cmd/couchcall/output/gotmpl"
	"github.com/go-kivik/couchcall/cmd/couchcall/output/json"
	"github.com/go-kivik/couchcall/cmd/couchcall/output/raw"
	"github.com/go-kivik/couchcall/cmd/couchcall/output/yaml"
)

const defaultConfigFile = "~/.couchcall/config.yaml"

type root struct {
	confFile string
	debug    bool
	log      log.Logger
	conf     *config.Config
	cmd      *cobra.Command
	fmt      *output.Formatter

	requestTimeout       string
	parsedRequestTimeout time.Duration
	connectTimeout       string
	parsedConnectTimeout time.Duration
	retryDelay           string
	retryTimeout         string
	options              map[string]string

	trace      *chttp.ClientTrace
	dumpHeader bool
	verbose    bool

	client *couchcall.Client

	// retry attempts
	retryCount         int
	retryDelayParsed   time.Duration
	retryTimeoutParsed time.Duration

	// resolveHome is used to resolve ~ in the default config file path
	resolveHome func(string) string
}

// Execute runs the command line, and exits with its status.
func Execute(ctx context.Context) {
	lg := log.New()
	root := rootCmd(lg)
	os.Exit(root.execute(ctx))
}

func (r *root) execute(ctx context.Context) int {
	ctx = chttp.WithClientTrace(ctx, r.clientTrace())
	err := r.cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	return extractExitCode(err)
}

func extractExitCode(err error) int {
	if code := errors.InspectErrorCode(err); code != 0 {
		return code
	}

	// Any unhandled errors are assumed to be from Cobra, so return a "failed
	// to initialize" error
	return errors.ErrUsage
}

func formatter() *output.Formatter {
	f := output.New()
	f.Register("", json.New())
	f.Register("json", json.New())
	f.Register("raw", raw.New())
	f.Register("yaml", yaml.New())
	f.Register("text", friendly.New())
	f.Register("go-template", gotmpl.New())
	return f
}

func resolveHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

func rootCmd(lg log.Logger) *root {
	r := &root{
		log:         lg,
		fmt:         formatter(),
		resolveHome: resolveHome,
	}
	r.cmd = &cobra.Command{
		Use:               "couchcall",
		Short:             "couchcall calls the CouchDB HTTP API",
		Long:              `couchcall issues single requests against a CouchDB server, and can serve an in-memory CouchDB for testing.`,
		PersistentPreRunE: r.init,
	}

	pf := r.cmd.PersistentFlags()

	r.fmt.ConfigFlags(pf)
	pf.StringVar(&r.confFile, "config", defaultConfigFile, "Path to config file to use for CLI requests")
	pf.BoolVar(&r.debug, "debug", false, "Enable debug output")
	pf.StringP("server", "S", "", "CouchDB server URL (default "+config.DefaultServer+")")
	pf.StringP("user", "u", "", "Username")
	pf.StringP("password", "p", "", "Password")
	pf.String("auth", "", "Authentication method: basic or cookie (default basic)")
	pf.String("database", "", "Database name")
	pf.IntVar(&r.retryCount, "retry", 0, "In case of transient error, retry up to this many times. A negative value retries forever.")
	pf.StringToStringVarP(&r.options, "option", "O", nil, "Query parameter, specified as key=value. May be repeated.")
	pf.BoolVarP(&r.dumpHeader, "header", "H", false, "Output response header")
	pf.BoolVarP(&r.verbose, "verbose", "v", false, "Output bi-directional network traffic")

	pf.StringVar(&r.requestTimeout, "request-timeout", "", "The time limit for each request.")
	pf.StringVar(&r.retryDelay, "retry-delay", "", "Delay between retry attempts. Disables the default exponential backoff algorithm.")
	pf.StringVar(&r.connectTimeout, "connect-timeout", "", "Limits the time spent establishing a TCP connection.")
	pf.StringVar(&r.retryTimeout, "retry-timeout", "", "When used with --retry, no more retries will be attempted after this timeout.")

	r.cmd.AddCommand(versionCmd(r))
	r.cmd.AddCommand(pingCmd(r))
	r.cmd.AddCommand(allDBsCmd(r))
	r.cmd.AddCommand(uuidsCmd(r))
	r.cmd.AddCommand(tasksCmd(r))
	r.cmd.AddCommand(sessionCmd(r))
	r.cmd.AddCommand(createDBCmd(r))
	r.cmd.AddCommand(dropDBCmd(r))
	r.cmd.AddCommand(infoCmd(r))
	r.cmd.AddCommand(compactCmd(r))
	r.cmd.AddCommand(compactViewCmd(r))
	r.cmd.AddCommand(viewCleanupCmd(r))
	r.cmd.AddCommand(getPropCmd(r))
	r.cmd.AddCommand(setPropCmd(r))
	r.cmd.AddCommand(getCmd(r))
	r.cmd.AddCommand(putCmd(r))
	r.cmd.AddCommand(deleteCmd(r))
	r.cmd.AddCommand(copyCmd(r))
	r.cmd.AddCommand(bulkCmd(r))
	r.cmd.AddCommand(queryCmd(r))
	r.cmd.AddCommand(viewCmd(r))
	r.cmd.AddCommand(allDocsCmd(r))
	r.cmd.AddCommand(appsCmd(r))
	r.cmd.AddCommand(serveCmd(r))

	return r
}

func parseDuration(val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	if d, err := strconv.ParseFloat(val, 64); err == nil {
		if d < 0 {
			return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
		}
		return time.Duration(d * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.Code(errors.ErrUsage, err)
	}
	if d < 0 {
		return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
	}
	return d, nil
}

func (r *root) init(cmd *cobra.Command, _ []string) error {
	r.log.SetOut(cmd.OutOrStdout())
	r.log.SetErr(cmd.ErrOrStderr())
	r.log.SetDebug(r.debug)
	r.fmt.SetOut(cmd.OutOrStdout())

	r.log.Debug("Debug mode enabled")

	var err error
	r.parsedRequestTimeout, err = parseDuration(r.requestTimeout)
	if err != nil {
		return err
	}
	r.parsedConnectTimeout, err = parseDuration(r.connectTimeout)
	if err != nil {
		return err
	}
	r.retryDelayParsed, err = parseDuration(r.retryDelay)
	if err != nil {
		return err
	}
	r.retryTimeoutParsed, err = parseDuration(r.retryTimeout)
	if err != nil {
		return err
	}
	if err := r.fmt.Validate(); err != nil {
		return err
	}

	confFile := r.resolveHome(r.confFile)
	required := cmd.Flags().Changed("config")
	r.conf, err = config.Load(confFile, required, cmd.Flags())
	if err != nil {
		return err
	}
	if r.requestTimeout != "" {
		r.conf.Timeout = r.parsedRequestTimeout
	}
	r.log.Debugf("Server: %s", r.conf.Server)
	if len(r.options) > 0 {
		r.log.Debugf("Query options: %v", r.options)
	}

	r.setTrace()

	// Flags parsed successfully; later failures are not usage errors.
	cmd.SilenceUsage = true
	return nil
}

func (r *root) httpClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   r.parsedConnectTimeout,
		KeepAlive: 30 * time.Second, // nolint:gomnd
	}
	return &http.Client{
		Timeout: r.conf.Timeout,
		Transport: &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: dialer.DialContext,
		},
	}
}

func (r *root) couch() (*couchcall.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	client, err := r.conf.Client(r.httpClient())
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

// db returns the database selected with --database or the configuration.
func (r *root) db() (*couchcall.DB, error) {
	if r.conf.Database == "" {
		return nil, errors.Code(errors.ErrUsage, "no database specified; use --database or set database in the config file")
	}
	client, err := r.couch()
	if err != nil {
		return nil, err
	}
	r.log.Debugf("Database: %s", r.conf.Database)
	return client.DB(r.conf.Database), nil
}

// retry calls fn until it succeeds, or the retry budget is exhausted.
// Client errors (4xx) are never retried.
func (r *root) retry(fn func() error) error {
	if r.retryCount == 0 {
		return fn()
	}
	bo := r.backOff()
	if r.retryTimeoutParsed > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), r.retryTimeoutParsed)
		defer cancel()
		bo = backoff.WithContext(bo, ctx)
	}
	return r.retryWith(bo, fn)
}

// backOff returns the retry schedule given by --retry and --retry-delay.
func (r *root) backOff() backoff.BackOff {
	var bo backoff.BackOff
	switch {
	case r.retryDelayParsed == 0 && r.retryDelay != "": // Disables retry delay
		bo = &backoff.ZeroBackOff{}
	case r.retryDelayParsed != 0:
		bo = backoff.NewConstantBackOff(r.retryDelayParsed)
	default:
		bo = backoff.NewExponentialBackOff()
	}
	if r.retryCount >= 0 {
		bo = backoff.WithMaxRetries(bo, uint64(r.retryCount))
	}
	return bo
}

// retryWith runs fn on the schedule bo, warning before each retry with the
// delay bo actually chose.
func (r *root) retryWith(bo backoff.BackOff, fn func() error) error {
	var retries int
	notify := func(err error, next time.Duration) {
		retries++
		msg := fmt.Sprintf("Transient problem: %s.", err)
		if next > 0 {
			msg += fmt.Sprintf(" Will retry in %s.", fmtDuration(next))
		}
		if remain := r.retryCount - retries; remain > 0 {
			msg += fmt.Sprintf(" %d retries left.", remain)
		}
		r.log.Warn(msg)
	}
	return backoff.RetryNotify(func() error {
		err := fn()
		if status := couchcall.HTTPStatus(err); status >= 400 && status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, bo, notify)
}

// nolint:gomnd
func fmtDuration(dur time.Duration) string {
	s := dur.Seconds()
	if s < 60 {
		return fmt.Sprintf("%0.2fs", s)
	}
	m := int(s / 60)
	s -= float64(m) * 60
	if m < 60 {
		return fmt.Sprintf("%dm%ds", m, int(s))
	}
	h := m / 60
	m -= h * 60
	if h < 24 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	d := h / 24
	h -= d * 24
	return fmt.Sprintf("%dd%dh%dm", d, h, m)
}

// opts returns the query parameters gathered from the command line.
func (r *root) opts() couchcall.Option {
	params := couchcall.Params{}
	for k, v := range r.options {
		params[k] = v
	}
	return params
}
