// Package intake owns per-call field capture and the verification lifecycle.
// Confidence alone is an unreliable gate (the upstream transcription service
// reports an unvarying high score), so format validity and plausibility
// checks carry the real weight here.
package intake

import (
	"time"
)

// FieldState is the verification lifecycle state of one field.
type FieldState int

const (
	// FieldUnset means no value has been captured yet.
	FieldUnset FieldState = iota
	// FieldPendingVerify means a value was captured but is awaiting caller
	// confirmation or re-entry.
	FieldPendingVerify
	// FieldVerified means the final value passed the field's validator.
	FieldVerified
	// FieldGivenUp is terminal: the retry ceiling was exceeded and the
	// conversation proceeds without this field.
	FieldGivenUp
	// FieldUnverified is terminal: the dialogue accepted a best-effort value
	// that never passed validation.
	FieldUnverified
)

// String returns a human-readable state name.
func (s FieldState) String() string {
	switch s {
	case FieldUnset:
		return "UNSET"
	case FieldPendingVerify:
		return "PENDING_VERIFY"
	case FieldVerified:
		return "VERIFIED"
	case FieldGivenUp:
		return "GIVEN_UP"
	case FieldUnverified:
		return "UNVERIFIED"
	default:
		return "UNKNOWN"
	}
}

// FieldRecord holds everything known about one captured data field. Records
// are created lazily on first capture and never deleted within a call; an
// explicit correction resets one in place.
type FieldRecord struct {
	Name       string
	RawValue   string
	FinalValue string
	Confidence float64
	Verified   bool
	VerifiedAt time.Time
	State      FieldState
	Attempts   int
}

// VerifyReason explains why a captured value needed verification.
type VerifyReason string

const (
	ReasonLowConfidence VerifyReason = "low_confidence"
	ReasonInvalidFormat VerifyReason = "invalid_format"
	ReasonUnlikelyChars VerifyReason = "unlikely_characters"
)

// VerificationEvent is one append-only log entry. The log is read by the
// export collaborator at call end and never mutated in between.
type VerificationEvent struct {
	ID         string
	Field      string
	Reason     VerifyReason
	Prompt     string
	Confidence float64
	Timestamp  time.Time
}

// PendingVerification is the awaiting-verification token. At most one exists
// per call; its presence routes the next caller transcript to the
// verification handler instead of the general dialogue path.
type PendingVerification struct {
	Field              string
	OriginalTranscript string
	Confidence         float64
	Reason             VerifyReason
}

// CaptureAction is the outcome class of CaptureField.
type CaptureAction int

const (
	// CaptureSaved means the value was accepted without verification.
	CaptureSaved CaptureAction = iota
	// CaptureAlreadyVerified means the field had a verified value; nothing
	// was mutated.
	CaptureAlreadyVerified
	// CaptureNeedsVerification means normal dialogue flow must halt and the
	// returned prompt must be spoken instead.
	CaptureNeedsVerification
)

// CaptureResult is returned by CaptureField.
type CaptureResult struct {
	Action CaptureAction
	Prompt string
}

// VerifyAction is the outcome class of HandleVerificationResponse.
type VerifyAction int

const (
	// VerifyNoPending means no token was outstanding; the transcript belongs
	// to the general dialogue path.
	VerifyNoPending VerifyAction = iota
	// VerifyAccepted means a value was accepted and the token cleared.
	VerifyAccepted
	// VerifyRetry means the caller should be re-prompted with Prompt.
	VerifyRetry
	// VerifyGaveUp means the retry ceiling was hit and the field abandoned.
	VerifyGaveUp
)

// VerifyOutcome is returned by HandleVerificationResponse.
type VerifyOutcome struct {
	Action VerifyAction
	Field  string
	Value  string
	Prompt string
}

// Retry ceilings. These intentionally differ per field type; the values are
// inherited from production tuning and should not be unified without
// product-owner confirmation.
const (
	maxFormatAttempts = 3
	maxPhoneAttempts  = 5
)

// problemContextFields are verified by reading the value back for a yes/no
// confirmation rather than asking the caller to re-enter it.
var problemContextFields = map[string]bool{
	"issue_description": true,
	"equipment_type":    true,
	"brand":             true,
	"symptoms":          true,
	"urgency":           true,
}

// nameFields get the letter-by-letter spelling escalation.
var nameFields = map[string]bool{
	"name":       true,
	"first_name": true,
	"last_name":  true,
}

// fieldLabels humanize field names for prompt text.
var fieldLabels = map[string]string{
	"name":              "full name",
	"first_name":        "first name",
	"last_name":         "last name",
	"email":             "email address",
	"phone":             "phone number",
	"address":           "address",
	"issue_description": "issue",
	"equipment_type":    "equipment type",
	"brand":             "brand",
	"symptoms":          "symptoms",
	"urgency":           "urgency",
}

func fieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return name
}
