// Copyright 2024 The passconv Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/util"
	"github.com/pkg/errors"

	"github.com/walletpass/passconv/container"
	"github.com/walletpass/passconv/policy"
)

const (
	defaultAddr            = ":8080"
	defaultUTCOffset       = "-7h"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownTimeout = "10s"
	defaultServiceName     = "passconv"
)

// Environment variables that override file values.
const (
	EnvAddr         = "PASSCONV_ADDR"
	EnvQuery        = "PASSCONV_QUERY"
	EnvUTCOffset    = "PASSCONV_UTC_OFFSET"
	EnvYear         = "PASSCONV_YEAR"
	EnvLogLevel     = "PASSCONV_LOG_LEVEL"
	EnvLogFormat    = "PASSCONV_LOG_FORMAT"
	EnvOTLPEndpoint = "PASSCONV_OTLP_ENDPOINT"
)

// Config represents the service configuration.
type Config struct {
	Addr            string           `json:"addr"`
	Query           string           `json:"query"`
	Policies        []string         `json:"policies"`
	StrictBuiltins  bool             `json:"strict_builtins"`
	UTCOffset       string           `json:"utc_offset"`
	Year            int              `json:"year"`
	Limits          container.Limits `json:"limits"`
	ShutdownTimeout string           `json:"shutdown_timeout"`
	Log             LogConfig        `json:"log"`
	Tracing         TracingConfig    `json:"tracing"`

	offset          time.Duration
	shutdownTimeout time.Duration
	parsedQuery     ast.Body
}

// LogConfig selects the log level and output format ("json" or "text").
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// TracingConfig enables span export. An empty endpoint keeps spans in
// process.
type TracingConfig struct {
	ServiceName string  `json:"service_name"`
	Endpoint    string  `json:"endpoint"`
	Insecure    bool    `json:"insecure"`
	SampleRatio float64 `json:"sample_ratio"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Addr:            defaultAddr,
		Query:           policy.DefaultQuery,
		UTCOffset:       defaultUTCOffset,
		Limits:          container.DefaultLimits(),
		ShutdownTimeout: defaultShutdownTimeout,
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Tracing: TracingConfig{
			ServiceName: defaultServiceName,
			SampleRatio: 1,
		},
	}
	return cfg
}

// Validate receives a slice of bytes representing the YAML or JSON
// configuration and returns a validated configuration with defaults filled
// in.
func Validate(bs []byte) (*Config, error) {
	return parse(bs, false)
}

// Load reads the configuration at path, which may be empty, after loading
// envFiles into the environment. Environment variables override file values.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "load env file %s", f)
		}
	}

	var bs []byte
	if path != "" {
		var err error
		if bs, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg, err := parse(bs, true)
	if err != nil && path != "" {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, err
}

// parse decodes bs over the defaults, optionally applies environment
// overrides, and validates the result.
func parse(bs []byte, env bool) (*Config, error) {
	cfg := Default()
	if len(bs) > 0 {
		if err := util.Unmarshal(bs, cfg); err != nil {
			return nil, errors.Wrap(err, "decode config")
		}
	}

	if env {
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvAddr); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv(EnvQuery); ok {
		c.Query = v
	}
	if v, ok := os.LookupEnv(EnvUTCOffset); ok {
		c.UTCOffset = v
	}
	if v, ok := os.LookupEnv(EnvYear); ok {
		year, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvYear)
		}
		c.Year = year
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvOTLPEndpoint); ok {
		c.Tracing.Endpoint = v
	}
	return nil
}

func (c *Config) validate() error {
	var err error

	if c.offset, err = time.ParseDuration(c.UTCOffset); err != nil {
		return errors.Wrap(err, "invalid utc_offset")
	}
	if c.offset <= -24*time.Hour || c.offset >= 24*time.Hour {
		return errors.Errorf("utc_offset %s is out of range", c.UTCOffset)
	}

	if c.shutdownTimeout, err = time.ParseDuration(c.ShutdownTimeout); err != nil {
		return errors.Wrap(err, "invalid shutdown_timeout")
	}

	if c.parsedQuery, err = ast.ParseBody(c.Query); err != nil {
		return errors.Wrap(err, "invalid query")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.Errorf("tracing.sample_ratio %v is outside [0, 1]", c.Tracing.SampleRatio)
	}

	return nil
}

// Offset returns the parsed utc_offset.
func (c *Config) Offset() time.Duration {
	return c.offset
}

// SetOffset replaces utc_offset with an already parsed value.
func (c *Config) SetOffset(d time.Duration) {
	c.offset = d
	c.UTCOffset = d.String()
}

// ShutdownGrace returns the parsed shutdown_timeout.
func (c *Config) ShutdownGrace() time.Duration {
	return c.shutdownTimeout
}

// ParsedQuery returns the parsed admission query.
func (c *Config) ParsedQuery() ast.Body {
	return c.parsedQuery
}

// LoadPolicies reads every configured policy file, keyed by path.
func (c *Config) LoadPolicies() (map[string]string, error) {
	return ReadPolicies(c.Policies)
}

// PolicyOptions returns the policy options implied by the configuration.
func (c *Config) PolicyOptions() []policy.Option {
	if !c.StrictBuiltins {
		return nil
	}
	return []policy.Option{policy.WithRegoOptions(rego.StrictBuiltinErrors(true))}
}

// ReadPolicies reads the Rego files at paths, keyed by path.
func ReadPolicies(paths []string) (map[string]string, error) {
	modules := make(map[string]string, len(paths))
	for _, p := range paths {
		bs, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read policy %s", p)
		}
		modules[p] = string(bs)
	}
	return modules, nil
}
