package domain

import "time"

// FailureReason classifies why a probe failed.
type FailureReason string

const (
	ReasonNone           FailureReason = "none"
	ReasonTimeout        FailureReason = "timeout"
	ReasonConnection     FailureReason = "connection_error"
	ReasonStatusMismatch FailureReason = "status_mismatch"
	ReasonJSONAssertion  FailureReason = "json_assertion_failed"
)

// CheckOutcome is the immutable result of one probe attempt.
// HTTPStatus is 0 when no response was received.
type CheckOutcome struct {
	TargetID   TargetID      `json:"target_id"`
	CheckedAt  time.Time     `json:"checked_at"`
	Success    bool          `json:"success"`
	HTTPStatus int           `json:"http_status,omitempty"`
	LatencyMS  float64       `json:"latency_ms"`
	Reason     FailureReason `json:"reason"`
	Detail     string        `json:"detail,omitempty"`
}

func (o CheckOutcome) Latency() time.Duration {
	return time.Duration(o.LatencyMS * float64(time.Millisecond))
}
