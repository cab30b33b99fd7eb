package intake

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicelane/callrelay/pkg/confidence"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// throwawayPhrases are things callers say that are never field values, no
// matter how the value was obtained.
var throwawayPhrases = map[string]bool{
	"hello": true, "hi": true, "hey": true, "thank you": true,
	"thanks": true, "goodbye": true, "bye": true, "yes": true, "no": true,
	"okay": true, "ok": true, "sure": true,
}

var affirmativeWords = []string{
	"yes", "yeah", "yep", "yup", "correct", "right", "exactly",
	"that's right", "that is right", "uh huh", "sure",
}

var negativeWords = []string{
	"no", "nope", "wrong", "incorrect", "not right", "that's not",
	"that is not",
}

// Validator owns all field state for one call. All access is serialized
// behind its mutex; nothing here is shared across calls.
type Validator struct {
	mu        sync.Mutex
	threshold float64
	logger    *slog.Logger
	now       func() time.Time

	fields  map[string]*FieldRecord
	events  []VerificationEvent
	pending *PendingVerification
}

// Option configures a Validator.
type Option func(*Validator)

// WithThreshold overrides the confidence gate.
func WithThreshold(t float64) Option {
	return func(v *Validator) { v.threshold = t }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a per-call field validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		threshold: confidence.DefaultThreshold,
		logger:    slog.Default(),
		now:       time.Now,
		fields:    make(map[string]*FieldRecord),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CaptureField records a transcribed value for a field and decides whether
// the dialogue may continue or must divert into verification.
func (v *Validator) CaptureField(field, transcript string, conf float64) CaptureResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec := v.ensureField(field)
	if rec.Verified && rec.FinalValue != "" {
		return CaptureResult{Action: CaptureAlreadyVerified}
	}

	transcript = strings.TrimSpace(transcript)
	formatOK, formatReason := checkFormat(field, transcript)
	needsVerify := conf <= v.threshold || !formatOK
	if !needsVerify {
		v.saveField(rec, transcript, conf)
		return CaptureResult{Action: CaptureSaved}
	}

	// Format problems outrank low confidence when both apply.
	reason := ReasonLowConfidence
	if !formatOK {
		reason = formatReason
	}

	rec.RawValue = transcript
	rec.Confidence = conf
	rec.State = FieldPendingVerify
	prompt := v.verificationPrompt(field, rec.Attempts, transcript)
	v.appendEvent(field, reason, prompt, conf)
	rec.Attempts++
	v.pending = &PendingVerification{
		Field:              field,
		OriginalTranscript: transcript,
		Confidence:         conf,
		Reason:             reason,
	}

	v.logger.Info("field needs verification",
		"field", field, "reason", string(reason), "confidence", conf, "attempt", rec.Attempts)
	return CaptureResult{Action: CaptureNeedsVerification, Prompt: prompt}
}

// HandleVerificationResponse consumes the pending token and interprets the
// caller's next utterance in its context.
func (v *Validator) HandleVerificationResponse(spoken string) VerifyOutcome {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil {
		return VerifyOutcome{Action: VerifyNoPending}
	}
	p := v.pending
	rec := v.ensureField(p.Field)
	spoken = strings.TrimSpace(spoken)

	switch {
	case problemContextFields[p.Field]:
		return v.verifyProblemContext(rec, p, spoken)
	case nameFields[p.Field]:
		return v.verifyName(rec, p, spoken)
	case p.Field == "email":
		return v.verifyEmail(rec, p, spoken)
	case p.Field == "phone":
		return v.verifyPhone(rec, p, spoken)
	default:
		// Generic fields: take the re-spoken value as final.
		v.pending = nil
		v.saveField(rec, spoken, p.Confidence)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}
}

// verifyProblemContext interprets a yes/no answer to "is that correct?".
// Ambiguous answers fall through to treating the response as a new value.
func (v *Validator) verifyProblemContext(rec *FieldRecord, p *PendingVerification, spoken string) VerifyOutcome {
	lower := strings.ToLower(spoken)
	if containsAny(lower, affirmativeWords) && !containsAny(lower, negativeWords) {
		v.pending = nil
		v.saveField(rec, p.OriginalTranscript, p.Confidence)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}
	if containsAny(lower, negativeWords) {
		v.pending = nil
		rec.State = FieldUnset
		rec.RawValue = ""
		return VerifyOutcome{
			Action: VerifyRetry,
			Field:  p.Field,
			Prompt: "No problem. Could you tell me once more?",
		}
	}
	// Neither yes nor no: the caller restated the value.
	v.pending = nil
	v.saveField(rec, spoken, p.Confidence)
	return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
}

func (v *Validator) verifyName(rec *FieldRecord, p *PendingVerification, spoken string) VerifyOutcome {
	if looksGarbageSpokenName(spoken) {
		if rec.Attempts >= maxFormatAttempts {
			return v.giveUp(rec, p)
		}
		prompt := "Sorry, I didn't catch that. Could you spell your " + fieldLabel(p.Field) + " for me, letter by letter?"
		rec.Attempts++
		v.appendEvent(p.Field, p.Reason, prompt, p.Confidence)
		return VerifyOutcome{Action: VerifyRetry, Field: p.Field, Prompt: prompt}
	}

	v.pending = nil
	v.saveField(rec, collapseSpelledName(spoken), p.Confidence)
	return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
}

func (v *Validator) verifyEmail(rec *FieldRecord, p *PendingVerification, spoken string) VerifyOutcome {
	parsed := parseSpelledEmail(spoken)
	if emailRegexp.MatchString(parsed) {
		v.pending = nil
		v.saveField(rec, parsed, p.Confidence)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}

	if rec.Attempts >= maxFormatAttempts {
		// Looping forever is worse than a best-effort value; the post-hoc
		// check in saveField keeps an implausible one formally unverified.
		v.pending = nil
		v.saveField(rec, parsed, p.Confidence)
		v.logger.Warn("accepting best-effort email after retry ceiling",
			"value", parsed, "attempts", rec.Attempts)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}

	prompt := "I still don't have a valid email. Could you spell it slowly, including the at sign and the dot?"
	rec.Attempts++
	v.appendEvent(p.Field, p.Reason, prompt, p.Confidence)
	return VerifyOutcome{Action: VerifyRetry, Field: p.Field, Prompt: prompt}
}

func (v *Validator) verifyPhone(rec *FieldRecord, p *PendingVerification, spoken string) VerifyOutcome {
	parsed, ok := parseSpelledPhone(spoken)
	if ok {
		v.pending = nil
		v.saveField(rec, parsed, p.Confidence)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}

	if rec.Attempts >= maxPhoneAttempts {
		v.pending = nil
		v.saveField(rec, parsed, p.Confidence)
		v.logger.Warn("accepting best-effort phone after retry ceiling",
			"value", parsed, "attempts", rec.Attempts)
		return VerifyOutcome{Action: VerifyAccepted, Field: p.Field, Value: rec.FinalValue}
	}

	prompt := "Could you say the phone number again slowly, one digit at a time?"
	rec.Attempts++
	v.appendEvent(p.Field, p.Reason, prompt, p.Confidence)
	return VerifyOutcome{Action: VerifyRetry, Field: p.Field, Prompt: prompt}
}

func (v *Validator) giveUp(rec *FieldRecord, p *PendingVerification) VerifyOutcome {
	v.pending = nil
	rec.State = FieldGivenUp
	rec.FinalValue = ""
	rec.Verified = false
	v.logger.Warn("giving up on field", "field", p.Field, "attempts", rec.Attempts)
	return VerifyOutcome{
		Action: VerifyGaveUp,
		Field:  p.Field,
		Prompt: "That's all right, we can come back to that later.",
	}
}

// ResetField clears a field after an explicit caller correction, so it can
// be re-captured from scratch.
func (v *Validator) ResetField(field string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending != nil && v.pending.Field == field {
		v.pending = nil
	}
	v.fields[field] = &FieldRecord{Name: field}
}

// Pending returns a copy of the outstanding verification token, or nil.
func (v *Validator) Pending() *PendingVerification {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return nil
	}
	p := *v.pending
	return &p
}

// Field returns a copy of the record for the named field, if one exists.
func (v *Validator) Field(name string) (FieldRecord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.fields[name]
	if !ok {
		return FieldRecord{}, false
	}
	return *rec, true
}

// Fields returns a snapshot of all field records.
func (v *Validator) Fields() map[string]FieldRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]FieldRecord, len(v.fields))
	for name, rec := range v.fields {
		out[name] = *rec
	}
	return out
}

// Events returns a snapshot of the append-only verification log.
func (v *Validator) Events() []VerificationEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]VerificationEvent, len(v.events))
	copy(out, v.events)
	return out
}

func (v *Validator) ensureField(name string) *FieldRecord {
	rec, ok := v.fields[name]
	if !ok {
		rec = &FieldRecord{Name: name}
		v.fields[name] = rec
	}
	return rec
}

// saveField persists a value the dialogue flow accepted, then runs the
// post-hoc plausibility check. A value can be accepted for conversational
// purposes yet remain formally unverified; a field is never exported as
// verified unless it independently passes validation.
func (v *Validator) saveField(rec *FieldRecord, value string, conf float64) {
	value = strings.TrimSpace(value)
	if rec.RawValue == "" {
		rec.RawValue = value
	}
	rec.FinalValue = value
	rec.Confidence = conf

	if v.isPlausible(rec.Name, value) {
		rec.Verified = true
		rec.State = FieldVerified
		rec.VerifiedAt = v.now()
		return
	}
	rec.Verified = false
	rec.State = FieldUnverified
	v.logger.Warn("accepted value failed plausibility check; leaving unverified",
		"field", rec.Name, "value", value)
}

func (v *Validator) isPlausible(field, value string) bool {
	if value == "" {
		return false
	}
	if throwawayPhrases[strings.ToLower(value)] {
		return false
	}
	ok, _ := checkFormat(field, value)
	if !ok {
		return false
	}
	// A full name needs at least two parts.
	if field == "name" && len(strings.Fields(value)) < 2 {
		return false
	}
	return true
}

func (v *Validator) appendEvent(field string, reason VerifyReason, prompt string, conf float64) {
	v.events = append(v.events, VerificationEvent{
		ID:         uuid.NewString(),
		Field:      field,
		Reason:     reason,
		Prompt:     prompt,
		Confidence: conf,
		Timestamp:  v.now(),
	})
}

// verificationPrompt picks escalation wording: first round asks for a
// repeat, later rounds ask for spelling. Problem-context fields always read
// the value back for confirmation.
func (v *Validator) verificationPrompt(field string, attempts int, transcript string) string {
	if problemContextFields[field] {
		return "Just to make sure I have that right — you said: \"" + transcript + "\". Is that correct?"
	}
	label := fieldLabel(field)
	if attempts == 0 {
		return "I want to make sure I have that right. Could you repeat your " + label + "?"
	}
	if field == "phone" {
		return "Could you say the phone number again slowly, one digit at a time?"
	}
	return "Could you spell your " + label + " for me slowly, letter by letter?"
}

// checkFormat is the field-type structural validity check. The second return
// is the event reason to use when the check fails.
func checkFormat(field, value string) (bool, VerifyReason) {
	switch {
	case field == "email":
		return emailRegexp.MatchString(value), ReasonInvalidFormat
	case field == "phone":
		n := 0
		for _, r := range value {
			if r >= '0' && r <= '9' {
				n++
			}
		}
		return n == 10 || n == 11, ReasonInvalidFormat
	case nameFields[field]:
		// Short names like Tim or Ann are fine here; the spoken-garbage
		// heuristics apply only to verification responses.
		if len(strings.TrimSpace(value)) < 2 {
			return false, ReasonInvalidFormat
		}
		if strings.ContainsAny(value, "@#$%^&*()_+=/\\|<>~0123456789") {
			return false, ReasonUnlikelyChars
		}
		return true, ReasonInvalidFormat
	case field == "address":
		trimmed := strings.TrimSpace(value)
		if len(trimmed) < 5 {
			return false, ReasonInvalidFormat
		}
		hasAlpha := false
		for _, r := range trimmed {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				hasAlpha = true
				break
			}
		}
		return hasAlpha, ReasonInvalidFormat
	default:
		return strings.TrimSpace(value) != "", ReasonInvalidFormat
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
