// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package policy evaluates Rego admission rules against converted passes.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/logging"
	"github.com/open-policy-agent/opa/v1/metrics"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
	"github.com/open-policy-agent/opa/v1/util"

	"github.com/walletpass/passconv/pass"
)

// DefaultQuery is evaluated when no query is configured.
const DefaultQuery = "data.passconv.admit.allow"

// Policy is a prepared admission query.
type Policy struct {
	query  string
	logger logging.Logger
	pq     rego.PreparedEvalQuery
}

// Option configures New.
type Option func(*config)

type config struct {
	logger logging.Logger
	rego   []func(*rego.Rego)
}

// WithLogger routes Rego print() output to logger.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithRegoOptions appends raw options to the underlying rego.New call.
func WithRegoOptions(opts ...func(*rego.Rego)) Option {
	return func(c *config) {
		c.rego = append(c.rego, opts...)
	}
}

// New compiles modules (file name to source) and prepares query. An empty
// query falls back to DefaultQuery.
func New(ctx context.Context, query string, modules map[string]string, opts ...Option) (*Policy, error) {
	c := config{logger: logging.NewNoOpLogger()}
	for _, opt := range opts {
		opt(&c)
	}

	if query == "" {
		query = DefaultQuery
	}
	parsedQuery, err := ast.ParseBody(query)
	if err != nil {
		return nil, err
	}

	regoOpts := []func(*rego.Rego){
		rego.ParsedQuery(parsedQuery),
		rego.EnablePrintStatements(true),
	}
	for name, src := range modules {
		regoOpts = append(regoOpts, rego.Module(name, src))
	}
	regoOpts = append(regoOpts, Builtins()...)
	regoOpts = append(regoOpts, c.rego...)

	pq, err := rego.New(regoOpts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &Policy{query: query, logger: c.logger, pq: pq}, nil
}

// Query returns the prepared query text.
func (p *Policy) Query() string {
	return p.query
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Reasons []string
	Result  interface{}
}

// Evaluate reports whether input is admitted.
func (p *Policy) Evaluate(ctx context.Context, input *pass.Pass) (bool, error) {
	d, err := p.Decide(ctx, input, metrics.New())
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Decide evaluates the query against input and records evaluation timers in
// m. The result must be a boolean, or an object with a boolean "allowed" key
// and an optional "reasons" list.
func (p *Policy) Decide(ctx context.Context, input *pass.Pass, m metrics.Metrics) (*Decision, error) {
	value, err := inputValue(input)
	if err != nil {
		return nil, err
	}

	h := hook{logger: p.logger}

	rs, err := p.pq.Eval(
		ctx,
		rego.EvalParsedInput(value),
		rego.EvalMetrics(m),
		rego.EvalPrintHook(&h),
	)

	switch {
	case err != nil:
		return nil, err
	case len(rs) == 0:
		return nil, fmt.Errorf("undefined decision")
	case len(rs) > 1:
		return nil, fmt.Errorf("multiple evaluation results")
	}

	return newDecision(rs[0].Expressions[0].Value)
}

func newDecision(result interface{}) (*Decision, error) {
	d := &Decision{Result: result}

	switch v := result.(type) {
	case bool:
		d.Allowed = v
	case map[string]interface{}:
		val, ok := v["allowed"]
		if !ok {
			return nil, fmt.Errorf("unable to determine evaluation result due to missing \"allowed\" key")
		}
		if d.Allowed, ok = val.(bool); !ok {
			return nil, fmt.Errorf("type assertion error")
		}
		if reasons, ok := v["reasons"].([]interface{}); ok {
			for _, r := range reasons {
				if s, ok := r.(string); ok {
					d.Reasons = append(d.Reasons, s)
				}
			}
		}
	default:
		return nil, fmt.Errorf("illegal value for policy evaluation result: %T", result)
	}

	return d, nil
}

func inputValue(p *pass.Pass) (ast.Value, error) {
	bs, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	var input interface{}
	if err := util.UnmarshalJSON(bs, &input); err != nil {
		return nil, err
	}

	return ast.InterfaceToValue(input)
}

type hook struct {
	logger logging.Logger
}

func (h *hook) Print(pctx print.Context, msg string) error {
	h.logger.Info("%v: %s", pctx.Location, msg)
	return nil
}
