// Package config loads client settings from a TOML file.
package config

import (
	gotls "crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strings"
	"time"

	"http-keepalive/application/http/actor/client"
	"http-keepalive/application/util/domain"
	"http-keepalive/transport/tls"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// LogLevel defines the minimum severity of logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration. Every table is optional.
type Config struct {
	Connection *ConnectionConfig `toml:"connection,omitempty"`
	Timeout    *TimeoutConfig    `toml:"timeout,omitempty"`
	TLS        *TLSConfig        `toml:"tls,omitempty"`
	DNS        *DNSConfig        `toml:"dns,omitempty"`
	Log        *LogConfig        `toml:"log,omitempty"`
}

type ConnectionConfig struct {
	Persistent       *bool   `toml:"persistent,omitempty"`
	KeepAliveTimeout *string `toml:"keep_alive_timeout,omitempty"` // e.g., "5s"
	BufferSize       *int    `toml:"buffer_size,omitempty"`

	AllowSoleLF         *bool `toml:"allow_sole_lf,omitempty"`
	LenientWhitespace   *bool `toml:"lenient_whitespace,omitempty"`
	MaxFieldLineLength  *uint `toml:"max_field_line_length,omitempty"`
	MaxStatusLineLength *uint `toml:"max_status_line_length,omitempty"`
}

type TimeoutConfig struct {
	Connect *string `toml:"connect,omitempty"`
	Read    *string `toml:"read,omitempty"`
	Write   *string `toml:"write,omitempty"`
}

type TLSConfig struct {
	// Fingerprint selects a client hello to mimic, see [tls.Fingerprints].
	// Empty uses crypto/tls.
	Fingerprint        string `toml:"fingerprint,omitempty"`
	CAFile             string `toml:"ca_file,omitempty"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify,omitempty"`
}

type DNSConfig struct {
	// Server is a DNS server address, e.g., "1.1.1.1:53".
	// Empty uses the system resolver.
	Server  string  `toml:"server,omitempty"`
	Timeout *string `toml:"timeout,omitempty"`

	// Hosts are static entries, looked up before the server.
	Hosts map[string][]string `toml:"hosts,omitempty"`
}

type LogConfig struct {
	Level  LogLevel `toml:"level,omitempty"`
	Format string   `toml:"format,omitempty"` // "text" or "json"
}

// Load reads the file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, errors.Wrap(err, "decoding toml")
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	return &cfg, nil
}

// ClientOptions converts the configuration on top of [client.DefaultOptions].
func (c *Config) ClientOptions() (client.Options, error) {
	opts := client.DefaultOptions()

	if conn := c.Connection; conn != nil {
		if conn.Persistent != nil {
			opts.Persistent = *conn.Persistent
		}
		if err := parseDuration(conn.KeepAliveTimeout, &opts.KeepAliveTimeout); err != nil {
			return opts, errors.Wrap(err, "connection.keep_alive_timeout")
		}
		if conn.BufferSize != nil {
			if *conn.BufferSize <= 0 {
				return opts, errors.Errorf("connection.buffer_size must be positive: %d", *conn.BufferSize)
			}
			opts.BufferSize = *conn.BufferSize
		}

		if conn.AllowSoleLF != nil {
			opts.Decode.AllowSoleLF = *conn.AllowSoleLF
		}
		if conn.LenientWhitespace != nil {
			opts.Decode.LenientWhitespace = *conn.LenientWhitespace
		}
		if conn.MaxFieldLineLength != nil {
			opts.Decode.MaxFieldLineLength = *conn.MaxFieldLineLength
		}
		if conn.MaxStatusLineLength != nil {
			opts.Decode.MaxStatusLineLength = *conn.MaxStatusLineLength
		}
	}

	if t := c.Timeout; t != nil {
		for name, pair := range map[string]struct {
			s   *string
			dst *time.Duration
		}{
			"connect": {t.Connect, &opts.Timeout.Connect},
			"read":    {t.Read, &opts.Timeout.Read},
			"write":   {t.Write, &opts.Timeout.Write},
		} {
			if err := parseDuration(pair.s, pair.dst); err != nil {
				return opts, errors.Wrapf(err, "timeout.%s", name)
			}
		}
	}

	if err := c.applyTLS(&opts); err != nil {
		return opts, errors.Wrap(err, "tls")
	}

	lookuper, err := c.lookuper()
	if err != nil {
		return opts, errors.Wrap(err, "dns")
	}
	opts.Lookuper = lookuper

	return opts, nil
}

func (c *Config) applyTLS(opts *client.Options) error {
	if c.TLS == nil {
		return nil
	}

	cfg := &gotls.Config{InsecureSkipVerify: c.TLS.InsecureSkipVerify}

	if c.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return errors.Wrap(err, "reading ca_file")
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return errors.Errorf("no certificate found in %s", c.TLS.CAFile)
		}
		cfg.RootCAs = pool
	}
	opts.TLS.Config = cfg

	if c.TLS.Fingerprint != "" {
		fingerprint, err := tls.GetFingerprint(c.TLS.Fingerprint)
		if err != nil {
			return err
		}
		opts.TLS.Upgrader = tls.NewUTLSUpgrader(fingerprint)
	}

	return nil
}

// lookuper returns nil when the system resolver of the dialer should be used.
func (c *Config) lookuper() (domain.Lookuper, error) {
	if c.DNS == nil {
		return nil, nil
	}

	var lookupers []domain.Lookuper

	if len(c.DNS.Hosts) > 0 {
		hosts := make(map[string][]netip.Addr, len(c.DNS.Hosts))
		for host, ips := range c.DNS.Hosts {
			for _, ip := range ips {
				addr, err := netip.ParseAddr(ip)
				if err != nil {
					return nil, errors.Wrapf(err, "hosts.%s", host)
				}
				hosts[host] = append(hosts[host], addr)
			}
		}
		lookupers = append(lookupers, domain.NewMapLookuper(hosts))
	}

	if c.DNS.Server != "" {
		timeout := 5 * time.Second
		if err := parseDuration(c.DNS.Timeout, &timeout); err != nil {
			return nil, errors.Wrap(err, "timeout")
		}
		lookupers = append(lookupers, domain.NewDNSLookuper(c.DNS.Server, timeout))
	} else if len(lookupers) > 0 {
		lookupers = append(lookupers, domain.NewResolverLookuper(nil))
	}

	switch len(lookupers) {
	case 0:
		return nil, nil
	case 1:
		return lookupers[0], nil
	}
	return domain.NewChainLookuper(lookupers...), nil
}

// Logger creates a logger writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, format := LogLevelInfo, "text"
	if c.Log != nil {
		if c.Log.Level != "" {
			level = c.Log.Level
		}
		if c.Log.Format != "" {
			format = c.Log.Format
		}
	}

	lvl, err := level.Level()
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return nil, errors.Errorf("unknown log format: %q", format)
}

func (l LogLevel) Level() (slog.Level, error) {
	switch LogLevel(strings.ToUpper(string(l))) {
	case LogLevelDebug:
		return slog.LevelDebug, nil
	case LogLevelInfo:
		return slog.LevelInfo, nil
	case LogLevelWarning:
		return slog.LevelWarn, nil
	case LogLevelError:
		return slog.LevelError, nil
	}
	return 0, errors.Errorf("unknown log level: %q", string(l))
}

func parseDuration(s *string, dst *time.Duration) error {
	if s == nil {
		return nil
	}

	d, err := time.ParseDuration(*s)
	if err != nil {
		return err
	}
	if d < 0 {
		return errors.Errorf("negative duration: %s", *s)
	}

	*dst = d
	return nil
}
