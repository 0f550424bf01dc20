// Command fetch requests each url in order, reusing the connection while the server keeps it alive.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"http-keepalive/application/http"
	"http-keepalive/application/http/actor/client"
	"http-keepalive/config"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type flags struct {
	config string

	method  string
	data    string
	headers []string

	persistent       bool
	keepAliveTimeout time.Duration
	fingerprint      string
	logLevel         string
	timeout          time.Duration
	fail             bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Fetch urls over a single keep-alive connection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &f, args)
		},
		SilenceUsage: true,
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "TOML config file")
	fs.StringVarP(&f.method, "method", "X", "GET", "request method")
	fs.StringVarP(&f.data, "data", "d", "", "request body")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `extra header, e.g. "Accept: */*"`)
	fs.BoolVar(&f.persistent, "persistent", true, "keep connections alive")
	fs.DurationVar(&f.keepAliveTimeout, "keep-alive-timeout", 0, "idle time before a kept connection expires")
	fs.StringVar(&f.fingerprint, "fingerprint", "", "TLS client hello to mimic (chrome, firefox, ...)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (DEBUG, INFO, WARNING, ERROR)")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "limit for each request")
	fs.BoolVarP(&f.fail, "fail", "f", false, "stop at the first 4xx or 5xx response without printing its body")

	return cmd
}

func run(cmd *cobra.Command, f *flags, urls []string) error {
	cfg := &config.Config{}
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return err
		}
	}
	applyFlags(cmd, f, cfg)

	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}

	c := client.NewClient(logger, nil, opts)
	defer c.Close()

	for _, u := range urls {
		if err := fetch(cmd, c, f, u); err != nil {
			logger.Error("Request failed", slog.String("url", u), slog.String("err", err.Error()))
			return err
		}
	}
	return nil
}

// applyFlags overrides cfg with the flags given explicitly.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if cfg.Connection == nil {
		cfg.Connection = &config.ConnectionConfig{}
	}
	// fetch keeps connections alive unless told otherwise.
	if changed("persistent") || cfg.Connection.Persistent == nil {
		cfg.Connection.Persistent = &f.persistent
	}
	if changed("keep-alive-timeout") {
		s := f.keepAliveTimeout.String()
		cfg.Connection.KeepAliveTimeout = &s
	}

	if changed("fingerprint") {
		if cfg.TLS == nil {
			cfg.TLS = &config.TLSConfig{}
		}
		cfg.TLS.Fingerprint = f.fingerprint
	}

	if changed("log-level") {
		if cfg.Log == nil {
			cfg.Log = &config.LogConfig{}
		}
		cfg.Log.Level = config.LogLevel(f.logLevel)
	}
}

func fetch(cmd *cobra.Command, c *client.Client, f *flags, rawURL string) error {
	var body io.Reader
	if f.data != "" {
		body = strings.NewReader(f.data)
	}

	req, err := http.NewRequest(f.method, rawURL, body)
	if err != nil {
		return err
	}

	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return errors.Errorf("malformed header %q", h)
		}
		req.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d %s\n", resp.Version, resp.Status, resp.Reason)

	if f.fail {
		if err := http.CheckStatus(resp.Status, resp.Reason); err != nil {
			return err
		}
	}

	_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
	return err
}
