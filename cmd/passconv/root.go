package main

import (
	"os"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/walletpass/passconv/inspect"
	"github.com/walletpass/passconv/internal/config"
	"github.com/walletpass/passconv/pkpass"
	"github.com/walletpass/passconv/policy"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel  string
	logFormat string
	year      int
	utcOffset time.Duration
	envFile   string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "passconv",
		Short:         "Inspect and convert Apple Wallet passes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	flags.IntVar(&g.year, "year", 0, "reference year for pass dates (default: current year)")
	flags.DurationVar(&g.utcOffset, "utc-offset", -7*time.Hour, "fixed UTC offset flight times are read in")
	flags.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded by serve")

	root.AddCommand(
		newInspectCommand(g),
		newConvertCommand(g),
		newCheckCommand(g),
		newServeCommand(g),
	)

	return root
}

// newLogger configures the process-wide logrus logger and returns an OPA
// logger with the same settings.
func newLogger(level, format string) (logging.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stderr)

	logger := logging.New()
	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stderr)
	logger.SetLevel(opaLevel(lvl))
	return logger, nil
}

func opaLevel(l logrus.Level) logging.Level {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return logging.Debug
	case logrus.InfoLevel:
		return logging.Info
	case logrus.WarnLevel:
		return logging.Warn
	default:
		return logging.Error
	}
}

// newService builds an inspect.Service from the global flags.
func (g *globalFlags) newService(logger logging.Logger, opts ...inspect.Option) *inspect.Service {
	base := []inspect.Option{
		inspect.WithLogger(logger),
		inspect.WithLocation(pkpass.FixedLocation(g.utcOffset)),
	}
	if g.year != 0 {
		base = append(base, inspect.WithYear(g.year))
	}
	return inspect.New(append(base, opts...)...)
}

// loadPolicy compiles the given policy files.
func loadPolicy(cmd *cobra.Command, query string, paths []string, logger logging.Logger, opts ...policy.Option) (*policy.Policy, error) {
	modules, err := config.ReadPolicies(paths)
	if err != nil {
		return nil, err
	}
	pol, err := policy.New(cmd.Context(), query, modules, append([]policy.Option{policy.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "compile policy")
	}
	return pol, nil
}

// inspectFile runs svc over the archive at path.
func inspectFile(cmd *cobra.Command, svc *inspect.Service, path string) (*inspect.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return svc.Inspect(cmd.Context(), f)
}
