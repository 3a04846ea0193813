package inspect

import (
	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/metrics"

	"github.com/walletpass/passconv/pass"
	"github.com/walletpass/passconv/pkpass"
)

// Timer names recorded in Result.Metrics.
const (
	TimerInspect   = "passconv_inspect"
	TimerContainer = "passconv_container_read"
	TimerExtract   = "passconv_extract"
	TimerConvert   = "passconv_convert"
	TimerPolicy    = "passconv_policy_eval"
)

// Result - Captures everything produced while inspecting one archive
type Result struct {
	ExtractionID string
	PkPass       *pkpass.PkPass
	Pass         *pass.Pass

	// Decision is nil when no admission policy is configured.
	Decision *bool
	Reasons  []string

	Metrics metrics.Metrics
}

// StopFunc should be called as soon as the inspection is finished
type StopFunc = func()

// NewResult creates a new Result and a StopFunc that is used to stop the overall timer
func NewResult() (*Result, StopFunc, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, nil, err
	}

	r := Result{
		ExtractionID: id.String(),
		Metrics:      metrics.New(),
	}

	r.Metrics.Timer(TimerInspect).Start()

	stop := func() {
		_ = r.Metrics.Timer(TimerInspect).Stop()
	}

	return &r, stop, nil
}

// Subtype names the detected subtype, or "none" before extraction succeeds.
func (r *Result) Subtype() string {
	if r.PkPass == nil || r.PkPass.Subtype == nil {
		return "none"
	}
	return r.PkPass.Subtype.Tag().String()
}

// Allowed reports whether the pass was admitted. Without a policy every pass
// is admitted.
func (r *Result) Allowed() bool {
	return r.Decision == nil || *r.Decision
}
