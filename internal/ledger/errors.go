// errors.go - Structured ledger rejection codes.
//
// The ledger rejects submissions with numeric codes embedded in its wire
// responses. The client decodes them into a RejectionCode at the boundary so
// retry decisions are made on the code, never on message text. Exactly one
// code is recoverable: a fee-resource registration whose chosen input is
// structurally ineligible (already registered) is retried with the next
// candidate; everything else is fatal.

package ledger

import (
	"errors"
	"fmt"
)

// RejectionCode classifies a ledger-side submission rejection.
type RejectionCode int

const (
	// RejectUnknown covers codes the client does not recognize. Always fatal.
	RejectUnknown RejectionCode = 0

	// RejectExpired: the transaction's TTL elapsed before inclusion.
	RejectExpired RejectionCode = 21

	// RejectDoubleSpend: an input was already consumed.
	RejectDoubleSpend RejectionCode = 34

	// RejectMissingSignature: an input slot was submitted unsigned.
	RejectMissingSignature RejectionCode = 47

	// RejectInvalidProof: the attached contract-call proof did not verify.
	RejectInvalidProof RejectionCode = 88

	// RejectFeeIneligibleInput: the output chosen to back a fee-resource
	// registration is not eligible (typically already registered). The only
	// code the client treats as "try the next candidate" rather than fatal.
	RejectFeeIneligibleInput RejectionCode = 139
)

// Recoverable reports whether a rejection may be retried with a different
// input candidate.
func (c RejectionCode) Recoverable() bool {
	return c == RejectFeeIneligibleInput
}

func (c RejectionCode) String() string {
	switch c {
	case RejectExpired:
		return "EXPIRED"
	case RejectDoubleSpend:
		return "DOUBLE_SPEND"
	case RejectMissingSignature:
		return "MISSING_SIGNATURE"
	case RejectInvalidProof:
		return "INVALID_PROOF"
	case RejectFeeIneligibleInput:
		return "FEE_INELIGIBLE_INPUT"
	default:
		return "UNKNOWN"
	}
}

// SubmitError is a structured ledger rejection.
type SubmitError struct {
	Code    RejectionCode
	Message string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("ledger rejected submission [%d %s]: %s", e.Code, e.Code, e.Message)
}

// RejectionOf extracts the rejection code from an error chain, or
// (RejectUnknown, false) if the error is not a ledger rejection at all.
func RejectionOf(err error) (RejectionCode, bool) {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return RejectUnknown, false
}

// ErrProofServiceUnavailable is returned when the proof service cannot be
// reached at all, as opposed to rejecting a specific invocation.
var ErrProofServiceUnavailable = errors.New("proof service unavailable")
