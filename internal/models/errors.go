package models

import "errors"

// Error codes carried in the JSON error envelope. Matched by clients, so
// these strings are part of the API.
const (
	CodeAccessDenied       = "access_denied"       // origin outside the loopback allow-set
	CodeUnauthorized       = "unauthorized"        // bad or missing shared secret
	CodeServiceUnavailable = "service_unavailable" // no secret configured outside development
	CodeRateLimited        = "rate_limited"        // fixed-window ceiling exceeded
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal_error"
)

// Outcome reasons recorded on audit records and returned in responses.
// MatchRejected and HardwareError are valid negative outcomes, not faults.
var (
	ErrMatcherUnavailable = errors.New("matcher service unavailable")
	ErrHardware           = errors.New("door relay reported failure")
)
