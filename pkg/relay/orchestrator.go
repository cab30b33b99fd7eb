package relay

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/voicelane/callrelay/pkg/confidence"
	"github.com/voicelane/callrelay/pkg/intake"
	"github.com/voicelane/callrelay/pkg/metrics"
)

// Phase is an informal marker of where the conversation is. It only feeds
// heuristics (farewell filtering, hallucination screening); nothing hard
// branches on it.
type Phase int

const (
	PhaseGreeting Phase = iota
	PhaseCollecting
	PhaseConfirming
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseGreeting:
		return "greeting"
	case PhaseCollecting:
		return "collecting"
	case PhaseConfirming:
		return "confirming"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Action is the orchestrator's decision for one caller turn.
type Action struct {
	// Say is a prompt the gateway should speak itself instead of letting
	// the agent respond. Empty means nothing to inject.
	Say string
	// Forward lets the agent generate a reply to this turn.
	Forward bool
	// Drop means the transcript was screened out entirely.
	Drop bool
}

var correctionMarkers = []string{
	"no, my", "no no", "that's wrong", "that is wrong", "that's not right",
	"actually my", "actually it's", "actually it is", "i said", "not ",
}

// fieldMentions maps spoken field references to intake field names. Longer
// phrases are listed first so "first name" wins over "name".
var fieldMentions = []struct {
	phrase string
	field  string
}{
	{"first name", "first_name"},
	{"last name", "last_name"},
	{"surname", "last_name"},
	{"email", "email"},
	{"phone", "phone"},
	{"number", "phone"},
	{"address", "address"},
	{"name", "name"},
}

// capturableFields are the contexts InferFieldContext can return that map
// onto intake fields. "general" chat is never captured.
var capturableFields = map[string]bool{
	"first_name": true, "last_name": true, "name": true,
	"email": true, "phone": true, "address": true,
	"brand": true, "equipment_type": true, "symptoms": true,
	"urgency": true, "issue_description": true,
}

// The name group stays case-sensitive: only a capitalized token after the
// confirmation phrase is treated as a name.
var confirmationName = regexp.MustCompile(`\b(?i:got it|thanks|thank you|perfect|great),?\s+([A-Z][a-z]{2,})\b`)

var closingPhrases = []string{
	"anything else", "have a great day", "thanks for calling",
	"we'll be in touch", "is there anything else",
}

// Orchestrator is the per-call decision core. It routes caller transcripts
// between the intake validator and the agent, arbitrates response
// generation, and screens agent output. It is not safe for concurrent use;
// the session loop is its only caller.
type Orchestrator struct {
	validator *intake.Validator
	logger    *slog.Logger

	phase            Phase
	lastQuestion     string
	responseInFlight bool
	queuedResponse   bool
}

// NewOrchestrator wires the decision core to a per-call validator.
func NewOrchestrator(validator *intake.Validator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		validator: validator,
		logger:    logger,
		phase:     PhaseGreeting,
	}
}

// Phase reports the current informal phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Validator exposes the intake state for end-of-call reporting.
func (o *Orchestrator) Validator() *intake.Validator { return o.validator }

// HandleTranscript decides what to do with one completed caller turn.
func (o *Orchestrator) HandleTranscript(text string) Action {
	text = strings.TrimSpace(text)
	if text == "" {
		return Action{Drop: true}
	}
	if o.phase == PhaseGreeting {
		o.phase = PhaseCollecting
	}

	// Outstanding verification question: the reply belongs to intake, not
	// the agent.
	if o.validator.Pending() != nil {
		return o.routePendingResponse(text)
	}

	if field, ok := o.detectCorrection(text); ok {
		o.logger.Info("caller correction detected", "field", field)
		o.validator.ResetField(field)
		return o.capture(field, text)
	}

	fieldCtx := confidence.InferFieldContext(o.lastQuestion)
	score := confidence.Estimate(text, fieldCtx)

	// A goodbye while we are wrapping up is not an artifact.
	if o.phase == PhaseClosing && hasIndicator(score, confidence.IndicatorFarewell) {
		return Action{Forward: true}
	}

	// Expected-digits filter: a reply to a phone question with no digits at
	// all is almost always a stale or misattributed transcript.
	if fieldCtx == "phone" && !containsDigitContent(text) {
		metrics.LowConfidenceDrops.Inc()
		o.logger.Info("dropping stale transcript", "context", fieldCtx, "transcript", text)
		return Action{Drop: true, Say: "Sorry, I didn't catch that. Could you say the number again?"}
	}

	if capturableFields[fieldCtx] {
		return o.captureScored(fieldCtx, text, score.Value)
	}

	// Non-capture turns get the relaxed gate: dropping open conversation is
	// worse than forwarding a noisy transcript the agent can ask about.
	if score.Value <= confidence.RelaxedThreshold {
		metrics.LowConfidenceDrops.Inc()
		o.logger.Info("dropping low-confidence transcript",
			"confidence", score.Value, "indicators", score.Indicators)
		return Action{Drop: true, Say: "Sorry, I didn't quite catch that. Could you say it again?"}
	}
	return Action{Forward: true}
}

func (o *Orchestrator) routePendingResponse(text string) Action {
	outcome := o.validator.HandleVerificationResponse(text)
	switch outcome.Action {
	case intake.VerifyAccepted:
		return Action{Forward: true}
	case intake.VerifyRetry:
		return Action{Say: outcome.Prompt}
	case intake.VerifyGaveUp:
		// Move the conversation along rather than stalling the call.
		return Action{Say: outcome.Prompt, Forward: true}
	default:
		return Action{Forward: true}
	}
}

func (o *Orchestrator) capture(field, text string) Action {
	score := confidence.Estimate(text, field)
	return o.captureScored(field, text, score.Value)
}

func (o *Orchestrator) captureScored(field, text string, conf float64) Action {
	value := text
	if isPersonalField(field) {
		value = extractFieldValue(text)
	}
	result := o.validator.CaptureField(field, value, conf)
	switch result.Action {
	case intake.CaptureNeedsVerification:
		if p := o.validator.Pending(); p != nil {
			metrics.Verifications.WithLabelValues(string(p.Reason)).Inc()
		}
		return Action{Say: result.Prompt}
	default:
		return Action{Forward: true}
	}
}

// detectCorrection looks for "no, my email is ..." style turns that name a
// field while rejecting its previous value.
func (o *Orchestrator) detectCorrection(text string) (string, bool) {
	lower := strings.ToLower(text)
	marked := false
	for _, m := range correctionMarkers {
		if strings.Contains(lower, m) {
			marked = true
			break
		}
	}
	if !marked {
		return "", false
	}
	for _, fm := range fieldMentions {
		if strings.Contains(lower, fm.phrase) {
			// Only a field that already holds a value can be corrected.
			if rec, exists := o.validator.Field(fm.field); exists && rec.FinalValue != "" {
				return fm.field, true
			}
		}
	}
	return "", false
}

// NoteAgentText observes the agent's spoken output. The return value is
// true when the text must be suppressed and regenerated: a confirmation
// that names a caller it never actually captured.
func (o *Orchestrator) NoteAgentText(text string) (suppress bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	o.lastQuestion = trimmed
	lower := strings.ToLower(trimmed)
	for _, p := range closingPhrases {
		if strings.Contains(lower, p) {
			o.phase = PhaseClosing
			break
		}
	}

	match := confirmationName.FindStringSubmatch(trimmed)
	if match == nil {
		return false
	}
	name := match[1]
	if o.knownName(name) {
		return false
	}
	o.logger.Warn("suppressing hallucinated confirmation", "name", name)
	return true
}

func (o *Orchestrator) knownName(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range []string{"name", "first_name", "last_name"} {
		rec, ok := o.validator.Field(field)
		if !ok || rec.FinalValue == "" {
			continue
		}
		for _, part := range strings.Fields(strings.ToLower(rec.FinalValue)) {
			if part == lower {
				return true
			}
		}
	}
	return false
}

// TryStartResponse implements single-flight response arbitration: at most
// one generation runs at a time, with a one-deep queue behind it. The
// return value is true when the caller should issue response.create now.
func (o *Orchestrator) TryStartResponse() bool {
	if o.responseInFlight {
		o.queuedResponse = true
		return false
	}
	o.responseInFlight = true
	return true
}

// NoteResponseCreated marks a generation the agent started on its own, as
// server-side VAD does. Idempotent with TryStartResponse.
func (o *Orchestrator) NoteResponseCreated() {
	o.responseInFlight = true
}

// FinishResponse records response.done. The return value is true when a
// queued request should be issued immediately.
func (o *Orchestrator) FinishResponse() bool {
	o.responseInFlight = false
	if o.queuedResponse {
		o.queuedResponse = false
		o.responseInFlight = true
		return true
	}
	return false
}

// ResponseInFlight reports whether a generation is active.
func (o *Orchestrator) ResponseInFlight() bool { return o.responseInFlight }

// CancelResponse clears the in-flight flag after a barge-in cancellation.
// Any queued request is dropped with it; the caller's new turn supersedes
// both.
func (o *Orchestrator) CancelResponse() {
	o.responseInFlight = false
	o.queuedResponse = false
}

func isPersonalField(field string) bool {
	switch field {
	case "name", "first_name", "last_name", "email", "phone", "address":
		return true
	}
	return false
}

// extractFieldValue strips correction/lead-in phrasing so "no, my email is
// tim@example.com" captures just the address.
func extractFieldValue(text string) string {
	lower := strings.ToLower(text)
	for _, lead := range []string{" is ", " it's ", " it is "} {
		if idx := strings.LastIndex(lower, lead); idx >= 0 {
			candidate := strings.TrimSpace(text[idx+len(lead):])
			if candidate != "" {
				return strings.Trim(candidate, ".,!?")
			}
		}
	}
	return strings.TrimSpace(text)
}

func containsDigitContent(text string) bool {
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, w := range []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "oh"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasIndicator(score confidence.Score, name string) bool {
	for _, ind := range score.Indicators {
		if ind == name {
			return true
		}
	}
	return false
}
