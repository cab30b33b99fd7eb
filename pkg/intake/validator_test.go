package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	return NewValidator(WithClock(func() time.Time { return base }))
}

func TestCaptureHighConfidenceSaves(t *testing.T) {
	v := testValidator(t)

	res := v.CaptureField("first_name", "Timothy", 0.95)
	assert.Equal(t, CaptureSaved, res.Action)

	rec, ok := v.Field("first_name")
	require.True(t, ok)
	assert.True(t, rec.Verified)
	assert.Equal(t, FieldVerified, rec.State)
	assert.Equal(t, "Timothy", rec.FinalValue)
	assert.Nil(t, v.Pending())
	assert.Empty(t, v.Events())
}

func TestCaptureVerifiedFieldIsIdempotent(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("first_name", "Timothy", 0.95)
	before := len(v.Events())

	res := v.CaptureField("first_name", "xyzqwrt", 0.1)
	assert.Equal(t, CaptureAlreadyVerified, res.Action)

	rec, _ := v.Field("first_name")
	assert.Equal(t, "Timothy", rec.FinalValue)
	assert.Len(t, v.Events(), before)
	assert.Nil(t, v.Pending())
}

func TestCaptureLowConfidenceDiverts(t *testing.T) {
	v := testValidator(t)

	res := v.CaptureField("first_name", "Timothy", 0.3)
	assert.Equal(t, CaptureNeedsVerification, res.Action)
	assert.Contains(t, res.Prompt, "repeat")

	p := v.Pending()
	require.NotNil(t, p)
	assert.Equal(t, "first_name", p.Field)
	assert.Equal(t, ReasonLowConfidence, p.Reason)

	events := v.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonLowConfidence, events[0].Reason)
	assert.NotEmpty(t, events[0].ID)
}

func TestFormatReasonOutranksLowConfidence(t *testing.T) {
	v := testValidator(t)

	res := v.CaptureField("email", "tim at example dot com", 0.2)
	assert.Equal(t, CaptureNeedsVerification, res.Action)

	p := v.Pending()
	require.NotNil(t, p)
	assert.Equal(t, ReasonInvalidFormat, p.Reason)
}

func TestNameUnlikelyCharsReason(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("last_name", "Sm1th", 0.9)
	p := v.Pending()
	require.NotNil(t, p)
	assert.Equal(t, ReasonUnlikelyChars, p.Reason)
}

func TestShortNameCapturesVerified(t *testing.T) {
	v := testValidator(t)

	res := v.CaptureField("first_name", "Tim", 0.95)
	assert.Equal(t, CaptureSaved, res.Action)

	rec, _ := v.Field("first_name")
	assert.True(t, rec.Verified)
	assert.Equal(t, FieldVerified, rec.State)
	assert.Equal(t, "Tim", rec.FinalValue)
}

func TestEscalationRepeatThenSpell(t *testing.T) {
	v := testValidator(t)

	first := v.CaptureField("first_name", "zz", 0.3)
	assert.Contains(t, first.Prompt, "repeat")

	out := v.HandleVerificationResponse("zz")
	assert.Equal(t, VerifyRetry, out.Action)
	assert.Contains(t, out.Prompt, "spell")
}

func TestSpelledNameAccepted(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("first_name", "zz", 0.3)
	out := v.HandleVerificationResponse("j o h n")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "John", out.Value)

	rec, _ := v.Field("first_name")
	assert.True(t, rec.Verified)
	assert.Equal(t, FieldVerified, rec.State)
	assert.Nil(t, v.Pending())
}

func TestSpelledShortNameVerifies(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("first_name", "zz", 0.3)
	out := v.HandleVerificationResponse("T i m")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "Tim", out.Value)

	rec, _ := v.Field("first_name")
	assert.True(t, rec.Verified)
	assert.Equal(t, FieldVerified, rec.State)
}

func TestNameGivesUpAfterCeiling(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("first_name", "zz", 0.3)
	assert.Equal(t, VerifyRetry, v.HandleVerificationResponse("zz").Action)
	assert.Equal(t, VerifyRetry, v.HandleVerificationResponse("xx").Action)
	out := v.HandleVerificationResponse("qq")
	assert.Equal(t, VerifyGaveUp, out.Action)

	rec, _ := v.Field("first_name")
	assert.Equal(t, FieldGivenUp, rec.State)
	assert.False(t, rec.Verified)
	assert.Empty(t, rec.FinalValue)
	assert.Nil(t, v.Pending())
}

func TestEmailSpelledResponseParsed(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("email", "tim at example dot com", 0.5)
	out := v.HandleVerificationResponse("t i m at example dot com")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "tim@example.com", out.Value)

	rec, _ := v.Field("email")
	assert.True(t, rec.Verified)
}

func TestEmailBestEffortAfterThreeFailures(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("email", "garbled", 0.5)
	assert.Equal(t, VerifyRetry, v.HandleVerificationResponse("still garbled").Action)
	assert.Equal(t, VerifyRetry, v.HandleVerificationResponse("more garble").Action)

	out := v.HandleVerificationResponse("yet more garble")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Nil(t, v.Pending())

	// Accepted for the dialogue, but it never passed validation; the record
	// ends in a terminal state rather than pending.
	rec, _ := v.Field("email")
	assert.False(t, rec.Verified)
	assert.Equal(t, FieldUnverified, rec.State)

	// No fourth prompt: the token is gone.
	assert.Equal(t, VerifyNoPending, v.HandleVerificationResponse("anything").Action)
}

func TestPhoneSpelledResponseFormatted(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("phone", "five five five", 0.9)
	out := v.HandleVerificationResponse("five five five one two three four five six seven")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "555-123-4567", out.Value)
}

func TestProblemContextConfirmation(t *testing.T) {
	v := testValidator(t)

	res := v.CaptureField("issue_description", "the washer leaks from the front", 0.4)
	assert.Equal(t, CaptureNeedsVerification, res.Action)
	assert.Contains(t, res.Prompt, "Is that correct")

	out := v.HandleVerificationResponse("yes that's right")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "the washer leaks from the front", out.Value)
}

func TestProblemContextRejectionClearsField(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("issue_description", "the dryer makes noise", 0.4)
	out := v.HandleVerificationResponse("no that's wrong")
	assert.Equal(t, VerifyRetry, out.Action)

	rec, _ := v.Field("issue_description")
	assert.Equal(t, FieldUnset, rec.State)
	assert.Nil(t, v.Pending())
}

func TestProblemContextRestatementAccepted(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("issue_description", "the fridge is warm", 0.4)
	out := v.HandleVerificationResponse("actually the freezer section is warm")
	assert.Equal(t, VerifyAccepted, out.Action)
	assert.Equal(t, "actually the freezer section is warm", out.Value)
}

func TestHandleResponseWithoutPending(t *testing.T) {
	v := testValidator(t)
	assert.Equal(t, VerifyNoPending, v.HandleVerificationResponse("hello").Action)
}

func TestResetFieldClearsPending(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("email", "garbled", 0.3)
	require.NotNil(t, v.Pending())

	v.ResetField("email")
	assert.Nil(t, v.Pending())

	rec, _ := v.Field("email")
	assert.Equal(t, FieldUnset, rec.State)
	assert.Empty(t, rec.FinalValue)
}

func TestSaveFieldRejectsThrowawayValue(t *testing.T) {
	v := testValidator(t)

	// High-confidence but worthless: plausibility gate leaves it unverified.
	v.CaptureField("brand", "thanks", 0.95)
	rec, _ := v.Field("brand")
	assert.False(t, rec.Verified)
	assert.Equal(t, FieldUnverified, rec.State)
}

func TestFullNameNeedsTwoParts(t *testing.T) {
	v := testValidator(t)

	v.CaptureField("name", "Madonna", 0.95)
	rec, _ := v.Field("name")
	assert.False(t, rec.Verified)
	assert.Equal(t, FieldUnverified, rec.State)

	v2 := testValidator(t)
	v2.CaptureField("name", "John Smith", 0.95)
	rec2, _ := v2.Field("name")
	assert.True(t, rec2.Verified)
}
