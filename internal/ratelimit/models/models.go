package models

import (
	"time"

	dErrors "bookedge/pkg/domainerrors"
)

// RouteClass categorizes endpoints for differentiated rate limiting.
type RouteClass string

const (
	// ClassGeneral: every API route (100 req/min per IP).
	ClassGeneral RouteClass = "general"
	// ClassIdentityVerification: phone-based PASS verification requests
	// (3/day per phone, 5/min per IP).
	ClassIdentityVerification RouteClass = "identity_verification"
	// ClassOTPSend: OTP SMS dispatch (5/day per phone, 10/min per IP).
	ClassOTPSend RouteClass = "otp_send"
)

// IsValid checks if the route class is one of the supported enum values.
func (c RouteClass) IsValid() bool {
	switch c {
	case ClassGeneral, ClassIdentityVerification, ClassOTPSend:
		return true
	}
	return false
}

// Scope identifies which subject a rule keys on.
type Scope string

const (
	ScopeIP    Scope = "ip"
	ScopePhone Scope = "phone"
)

// Rule is one immutable rate-limit rule. Multiple rules may apply to the
// same route class; they are evaluated in declared order with short-circuit
// deny.
type Rule struct {
	Class  RouteClass
	Scope  Scope
	Limit  int
	Window time.Duration
}

// Validate enforces rule invariants at construction time.
func (r Rule) Validate() error {
	if !r.Class.IsValid() {
		return dErrors.New(dErrors.CodeInternal, "invalid route class in rate limit rule")
	}
	if r.Scope != ScopeIP && r.Scope != ScopePhone {
		return dErrors.New(dErrors.CodeInternal, "invalid scope in rate limit rule")
	}
	if r.Limit <= 0 {
		return dErrors.New(dErrors.CodeInternal, "rate limit rule limit must be positive")
	}
	if r.Window <= 0 {
		return dErrors.New(dErrors.CodeInternal, "rate limit rule window must be positive")
	}
	return nil
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	Scope      Scope     `json:"scope,omitempty"`       // scope of the violated rule
}

// DefaultRules returns the deployment's rule set. Order matters: phone rules
// come before the per-route IP rules so the caller-facing reason names the
// scarcer quota first.
func DefaultRules() []Rule {
	return []Rule{
		{Class: ClassGeneral, Scope: ScopeIP, Limit: 100, Window: time.Minute},

		{Class: ClassIdentityVerification, Scope: ScopePhone, Limit: 3, Window: 24 * time.Hour},
		{Class: ClassIdentityVerification, Scope: ScopeIP, Limit: 5, Window: time.Minute},

		{Class: ClassOTPSend, Scope: ScopePhone, Limit: 5, Window: 24 * time.Hour},
		{Class: ClassOTPSend, Scope: ScopeIP, Limit: 10, Window: time.Minute},
	}
}
