package domain

import "strings"

// DegradationPolicyMode enumerates behaviors when a shared store is unavailable.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeFailOpen admits requests when a check cannot be evaluated.
	DegradationPolicyModeFailOpen DegradationPolicyMode = "fail_open"
	// DegradationPolicyModeFailClosed rejects requests when a check cannot be evaluated.
	DegradationPolicyModeFailClosed DegradationPolicyMode = "fail_closed"
)

// DegradationPolicy decides whether a check that could not reach its backing
// store admits or rejects the request. Revocation lookups always fail closed
// regardless of the configured mode; only admission limiting consults this.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy, defaulting to fail-open when the
// mode is unrecognised.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeFailClosed {
		mode = DegradationPolicyModeFailOpen
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeFailClosed), "closed", "strict":
		return DegradationPolicyModeFailClosed
	default:
		return DegradationPolicyModeFailOpen
	}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// FailsClosed indicates whether unavailable checks reject the request.
func (p DegradationPolicy) FailsClosed() bool {
	return p.mode == DegradationPolicyModeFailClosed
}
