package internaldefs

import (
	"github.com/MrEthical07/tokengate"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

const AuditDroppedName = "tokengate_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: tokengate.MetricLoginSuccess, Name: "tokengate_login_success_total", Help: "Successful logins."},
	{ID: tokengate.MetricLoginFailure, Name: "tokengate_login_failure_total", Help: "Failed logins."},
	{ID: tokengate.MetricLogout, Name: "tokengate_logout_total", Help: "Tokens revoked by logout."},
	{ID: tokengate.MetricLogoutFailure, Name: "tokengate_logout_failure_total", Help: "Logouts that could not record the revocation."},
	{ID: tokengate.MetricValidateSuccess, Name: "tokengate_validate_success_total", Help: "Tokens accepted."},
	{ID: tokengate.MetricValidateMissingToken, Name: "tokengate_validate_missing_token_total", Help: "Validations with no token."},
	{ID: tokengate.MetricValidateMalformed, Name: "tokengate_validate_malformed_total", Help: "Validations of malformed tokens."},
	{ID: tokengate.MetricValidateBadSignature, Name: "tokengate_validate_bad_signature_total", Help: "Tokens rejected for a bad signature."},
	{ID: tokengate.MetricValidateExpired, Name: "tokengate_validate_expired_total", Help: "Tokens rejected as expired."},
	{ID: tokengate.MetricValidateRevoked, Name: "tokengate_validate_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: tokengate.MetricValidateStoreUnavailable, Name: "tokengate_validate_store_unavailable_total", Help: "Validations refused because the revocation store did not answer."},
}

var HistogramDefs = []HistogramDef{
	{ID: tokengate.MetricValidateLatency, Name: "tokengate_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for everything above the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters without
// native histogram bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
