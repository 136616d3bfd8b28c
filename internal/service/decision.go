package service

import (
	"github.com/salonpos/access-service/internal/models"
)

// Decision reasons. below_auto_approve means a candidate was found with
// confidence inside [MinConfidence, AutoApproveConfidence): reported to the
// caller as an informational match but never allowed to actuate hardware.
const (
	ReasonNoMatch          = "no_match"
	ReasonLivenessFailed   = "liveness_failed"
	ReasonBelowMatch       = "below_match_threshold"
	ReasonBelowAutoApprove = "below_auto_approve"
	ReasonAutoApproved     = "auto_approved"
)

type Decision struct {
	Approved bool
	Reason   string
}

// DecisionEngine turns a matcher result into an approve/reject verdict.
// It is a pure function of its input: no clock, no I/O, no state.
//
// QualityScore is carried to the audit layer but does not gate the decision;
// whether a low-quality frame should veto a confident live match is a product
// decision that the matcher's current behavior does not take.
type DecisionEngine struct {
	MinConfidence         float64
	AutoApproveConfidence float64
	RequireLiveness       bool
}

func NewDecisionEngine(minConfidence, autoApprove float64, requireLiveness bool) *DecisionEngine {
	return &DecisionEngine{
		MinConfidence:         minConfidence,
		AutoApproveConfidence: autoApprove,
		RequireLiveness:       requireLiveness,
	}
}

func (e *DecisionEngine) Decide(result models.IdentificationResult) Decision {
	if result.UserID == nil || *result.UserID == "" {
		return Decision{Approved: false, Reason: ReasonNoMatch}
	}
	if e.RequireLiveness && !result.IsLive {
		return Decision{Approved: false, Reason: ReasonLivenessFailed}
	}
	if result.Confidence < e.MinConfidence {
		return Decision{Approved: false, Reason: ReasonBelowMatch}
	}
	if result.Confidence < e.AutoApproveConfidence {
		return Decision{Approved: false, Reason: ReasonBelowAutoApprove}
	}
	return Decision{Approved: true, Reason: ReasonAutoApproved}
}
