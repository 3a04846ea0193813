package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/walletpass/passconv/gwallet"
	"github.com/walletpass/passconv/inspect"
	"github.com/walletpass/passconv/pkpass"
	"github.com/walletpass/passconv/policy"
)

var errDenied = errors.New("pass denied by policy")

const unknown = "unknown"

func newInspectCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pkpass>",
		Short: "Print a summary of a pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			result, err := inspectFile(cmd, g.newService(logger), args[0])
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), result.PkPass)
		},
	}
}

func printSummary(w io.Writer, p *pkpass.PkPass) error {
	lines := [][2]string{
		{"Serial number", p.Base.SerialNumber},
		{"Pass type", p.Base.PassTypeIdentifier},
		{"Organization", p.Base.OrganizationName},
		{"Description", p.Base.Description},
		{"Team", p.Base.TeamIdentifier},
		{"Colors", p.Base.ForegroundColor + " on " + p.Base.BackgroundColor},
		{"Barcode", fmt.Sprintf("%s %q (%s)", p.Barcode.Format, p.Barcode.Message, p.Barcode.MessageEncoding)},
	}

	if f, ok := p.Flight(); ok {
		get := func(fn func() (string, bool)) string {
			if s, ok := fn(); ok {
				return s
			}
			return unknown
		}
		lines = append(lines,
			[2]string{"Subtype", f.Tag().String()},
			[2]string{"Flight", get(f.FlightNumber)},
			[2]string{"Carrier", get(f.SubsidiaryCarrier)},
			[2]string{"From", get(f.BoardPoint)},
			[2]string{"To", get(f.OffPoint)},
			[2]string{"Passenger", get(f.Passenger)},
			[2]string{"Seat", get(f.Seat)},
			[2]string{"Class", get(f.BookingClass)},
			[2]string{"Group", get(f.Group)},
			[2]string{"Confirmation", get(f.Recloc)},
			[2]string{"Boarding", formatTime(f.BoardingDateTime())},
			[2]string{"Departure", formatTime(f.DepartureDateTime())},
			[2]string{"Details", get(f.Details)},
		)
	}

	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-14s %s\n", l[0]+":", l[1]); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time, ok bool) string {
	if !ok {
		return unknown
	}
	return t.Format(time.RFC1123Z)
}

func newConvertCommand(g *globalFlags) *cobra.Command {
	var to, out string

	cmd := &cobra.Command{
		Use:   "convert <file.pkpass>",
		Short: "Convert a pass to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			result, err := inspectFile(cmd, g.newService(logger), args[0])
			if err != nil {
				return err
			}

			var doc interface{}
			switch to {
			case "pass":
				doc = result.Pass
			case "pkpass":
				doc = result.PkPass
			case "gwallet":
				if doc, err = gwallet.FromPkPass(result.PkPass); err != nil {
					return err
				}
			default:
				return errors.Errorf("unknown target format %q", to)
			}

			bs, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			bs = append(bs, '\n')

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(bs)
				return err
			}
			return errors.Wrapf(os.WriteFile(out, bs, 0o644), "write %s", out)
		},
	}

	cmd.Flags().StringVar(&to, "to", "pass", "target format: pass, gwallet or pkpass")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newCheckCommand(g *globalFlags) *cobra.Command {
	var (
		query    string
		policies []string
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "check <file.pkpass>",
		Short: "Evaluate an admission policy against a pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			var polOpts []policy.Option
			if strict {
				polOpts = append(polOpts, policy.WithRegoOptions(rego.StrictBuiltinErrors(true)))
			}
			pol, err := loadPolicy(cmd, query, policies, logger, polOpts...)
			if err != nil {
				return err
			}

			result, err := inspectFile(cmd, g.newService(logger, inspect.WithPolicy(pol)), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !result.Allowed() {
				fmt.Fprintf(w, "denied %s\n", result.ExtractionID)
				for _, r := range result.Reasons {
					fmt.Fprintf(w, "  - %s\n", r)
				}
				return errDenied
			}
			fmt.Fprintf(w, "allowed %s\n", result.ExtractionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", policy.DefaultQuery, "admission query")
	cmd.Flags().StringSliceVar(&policies, "policy", nil, "Rego policy file (repeatable)")
	cmd.Flags().BoolVar(&strict, "strict-builtins", false, "fail evaluation on built-in function errors")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}
