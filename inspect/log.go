package inspect

import (
	"github.com/open-policy-agent/opa/v1/logging"
	"go.opentelemetry.io/otel/trace"

	"github.com/walletpass/passconv/passerr"
)

// logExtraction writes the single structured line every inspection emits.
func logExtraction(logger logging.Logger, span trace.Span, result *Result, err error) {
	fields := map[string]interface{}{
		"extraction_id": result.ExtractionID,
		"subtype":       result.Subtype(),
		"metrics":       result.Metrics.All(),
	}

	if sc := span.SpanContext(); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	if result.Decision != nil {
		fields["allowed"] = *result.Decision
		if len(result.Reasons) > 0 {
			fields["reasons"] = result.Reasons
		}
	}

	if err != nil {
		code := passerr.CodeOf(err)
		if code == "" {
			code = "internal_error"
		}
		fields["code"] = code
		fields["err"] = err.Error()
		logger.WithFields(fields).Error("Extraction failed.")
		return
	}

	logger.WithFields(fields).Info("Extraction complete.")
}
