package policy

import (
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/types"
)

// Carrier is a subsidiaryCarrier value split into airline code and flight
// number.
type Carrier struct {
	Code   string `json:"code"`
	Number string `json:"number"`
}

func parseCarrier(s string) (Carrier, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return Carrier{}, fmt.Errorf("carrier %q is too short", s)
	}
	return Carrier{Code: s[:2], Number: s[2:]}, nil
}

// ParseCarrier implements the parse_carrier builtin.
func ParseCarrier(bctx rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {

	var input string

	if err := ast.As(a.Value, &input); err != nil {
		return nil, err
	}
	c, err := parseCarrier(input)

	if err != nil {
		return nil, err
	}

	v, err := ast.InterfaceToValue(c)
	if err != nil {
		return nil, err
	}
	return ast.NewTerm(v), nil
}

// Builtins returns the custom functions every policy can call.
func Builtins() []func(*rego.Rego) {
	return []func(*rego.Rego){
		rego.Function1(
			&rego.Function{
				Name:             "parse_carrier",
				Decl:             types.NewFunction(types.Args(types.S), types.A),
				Memoize:          true,
				Nondeterministic: false,
			},
			ParseCarrier,
		),
	}
}
