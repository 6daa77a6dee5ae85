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
// Package config loads the command line configuration from a file, the
// environment, and flags.
package config

import (
	"fmt"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-kivik/couchcall"
	"github.com/go-kivik/couchcall/cmd/couchcall/errors"
)

// EnvPrefix prefixes every environment variable read, e.g. COUCHCALL_SERVER.
const EnvPrefix = "COUCHCALL"

// DefaultServer is used when no server is configured.
const DefaultServer = "http://localhost:5984"

// Auth methods.
const (
	AuthBasic  = "basic"
	AuthCookie = "cookie"
)

// Config is the connection configuration.
type Config struct {
	Server   string        `mapstructure:"server" validate:"required,url"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password" validate:"required_with=User"`
	Auth     string        `mapstructure:"auth" validate:"oneof=basic cookie"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// keys maps each configuration key to the flag which may override it, if
// any. The request timeout flag accepts bare seconds, so it is applied by the
// caller.
var keys = map[string]string{
	"server":   "server",
	"user":     "user",
	"password": "password",
	"auth":     "auth",
	"database": "database",
	"timeout":  "",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Load reads the configuration file at path, then COUCHCALL_* environment
// variables, then any flags in flags which were set explicitly. A missing
// file is an error only if required is true.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	v := viper.NewWithOptions(
		viper.EnvKeyReplacer(strings.NewReplacer("-", "_")),
	)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("server", DefaultServer)
	v.SetDefault("auth", AuthBasic)
	v.SetDefault("timeout", "0s")
	for key, flag := range keys {
		_ = v.BindEnv(key)
		if flags == nil || flag == "" {
			continue
		}
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Code(errors.ErrSoftware, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Codef(errors.ErrUsage, "config file %s: %w", path, err)
			}
		}
	}

	conf := &Config{}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(conf, viper.DecodeHook(hook)); err != nil {
		return nil, errors.Code(errors.ErrUsage, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks every field of c.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Code(errors.ErrSoftware, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Field(), fe.Tag()))
	}
	return errors.Codef(errors.ErrUsage, "invalid configuration: %s", strings.Join(msgs, ", "))
}

// Client returns a client for the configured server, issuing requests with
// httpClient.
func (c *Config) Client(httpClient *http.Client) (*couchcall.Client, error) {
	opts := []couchcall.Option{
		couchcall.OptionHTTPClient(httpClient),
		couchcall.OptionUserAgent("couchcall-cli"),
	}
	if c.User != "" {
		switch c.Auth {
		case AuthCookie:
			opts = append(opts, couchcall.CookieAuth(c.User, c.Password))
		default:
			opts = append(opts, couchcall.BasicAuth(c.User, c.Password))
		}
	}
	client, err := couchcall.New(c.Server, opts...)
	return client, errors.Code(errors.ErrUsage, err)
}
