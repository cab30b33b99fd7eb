// Package confidence scores transcript reliability heuristically. The
// upstream transcription service reports an unvarying high score, so this
// estimator is the only usable confidence signal: it starts at 1.0 and
// subtracts fixed penalties for patterns that correlate with misheard or
// fabricated input.
package confidence

import (
	"math"
	"regexp"
	"strings"
)

// Score is the result of estimating one transcript.
type Score struct {
	// Value is the clamped confidence in [0,1], rounded to 2 decimals.
	Value float64
	// Indicators names every penalty category that fired, at most once each.
	Indicators []string
}

// DefaultThreshold is the confidence at or below which a captured value
// requires verification.
const DefaultThreshold = 0.60

// RelaxedThreshold is the looser gate applied to open conversation that is
// not a field capture. It intentionally differs from DefaultThreshold; do
// not unify without product-owner confirmation.
const RelaxedThreshold = 0.40

// Penalty and bonus constants. All additive, applied at most once per
// category. Hand-tuned against call transcripts.
const (
	penaltyArtifact       = 0.30
	penaltyLengthOutlier  = 0.15
	penaltyFillerDensity  = 0.15
	penaltyGibberish      = 0.45
	penaltyRepeatedWords  = 0.20
	penaltyEmailStructure = 0.30
	penaltySpokenEmail    = 0.15
	penaltyPhoneDigits    = 0.30
	penaltyShortAnswer    = 0.15
	penaltyQuestionMarks  = 0.20
	penaltyAllCaps        = 0.10
	penaltyNumericName    = 0.40
	penaltyFarewell       = 0.25
	penaltyNameGarbage    = 0.40

	bonusEmailValid = 0.10
	bonusPhoneValid = 0.10
)

// Indicator names, stable for event logging and tests.
const (
	IndicatorArtifact       = "transcription_artifact"
	IndicatorLengthOutlier  = "length_outlier"
	IndicatorFillerDensity  = "filler_density"
	IndicatorGibberish      = "gibberish"
	IndicatorRepeatedWords  = "repeated_words"
	IndicatorEmailStructure = "missing_email_structure"
	IndicatorSpokenEmail    = "spoken_email_format"
	IndicatorPhoneDigits    = "phone_digit_count"
	IndicatorShortAnswer    = "too_short_answer"
	IndicatorQuestionMarks  = "multiple_question_marks"
	IndicatorAllCaps        = "all_caps"
	IndicatorNumericName    = "numeric_name"
	IndicatorFarewell       = "farewell_phrase"
	IndicatorNameGarbage    = "name_garbage"
)

var artifactMarkers = []string{
	"[inaudible]", "[unintelligible]", "[noise]", "[music]", "[silence]", "<unk>",
}

var fillerWords = map[string]bool{
	"um": true, "uh": true, "er": true, "ah": true, "hmm": true,
	"like": true, "actually": true, "basically": true,
}

var farewellPhrases = []string{
	"goodbye", "bye bye", "bye", "see you", "talk to you later",
	"have a good day", "have a great day", "take care", "so long",
}

// nonNameWords are single words that callers say but are never names.
var nonNameWords = map[string]bool{
	"yes": true, "no": true, "yeah": true, "nope": true, "okay": true,
	"ok": true, "hello": true, "hi": true, "hey": true, "what": true,
	"huh": true, "sorry": true, "sure": true, "thanks": true,
}

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var recognizedTLDs = []string{
	".com", ".net", ".org", ".edu", ".gov", ".io", ".co", ".us", ".biz", ".info",
}

// Estimate scores a transcript for the given field context. Deterministic,
// no side effects; penalty application is additive so ordering does not
// change the value, but each category fires at most once so the indicator
// set is reproducible.
func Estimate(transcript, fieldContext string) Score {
	value := 1.0
	var indicators []string
	apply := func(indicator string, penalty float64) {
		value -= penalty
		indicators = append(indicators, indicator)
	}

	trimmed := strings.TrimSpace(transcript)
	lower := strings.ToLower(trimmed)
	tokens := strings.Fields(lower)

	if hasArtifactMarker(lower) {
		apply(IndicatorArtifact, penaltyArtifact)
	}
	if isLengthOutlier(trimmed, fieldContext) {
		apply(IndicatorLengthOutlier, penaltyLengthOutlier)
	}
	if countFillers(tokens) > 2 {
		apply(IndicatorFillerDensity, penaltyFillerDensity)
	}
	if looksGibberish(lower, tokens) {
		apply(IndicatorGibberish, penaltyGibberish)
	}
	if repeatedWordRatioLow(tokens) {
		apply(IndicatorRepeatedWords, penaltyRepeatedWords)
	}

	switch fieldContext {
	case "email":
		if !strings.Contains(trimmed, "@") || !hasRecognizedTLD(lower) {
			apply(IndicatorEmailStructure, penaltyEmailStructure)
		}
		if looksSpokenEmail(lower) {
			apply(IndicatorSpokenEmail, penaltySpokenEmail)
		}
		if emailRegexp.MatchString(trimmed) {
			value += bonusEmailValid
		}
	case "phone":
		n := digitCount(trimmed)
		if n == 10 || n == 11 {
			value += bonusPhoneValid
		} else {
			apply(IndicatorPhoneDigits, penaltyPhoneDigits)
		}
	}

	if isOpenEnded(fieldContext) && len(trimmed) > 0 && len(trimmed) < 3 {
		apply(IndicatorShortAnswer, penaltyShortAnswer)
	}
	if strings.Count(trimmed, "?") >= 2 {
		apply(IndicatorQuestionMarks, penaltyQuestionMarks)
	}
	if isShoutedText(trimmed) {
		apply(IndicatorAllCaps, penaltyAllCaps)
	}
	if isNameContext(fieldContext) && isNumericOnly(trimmed) {
		apply(IndicatorNumericName, penaltyNumericName)
	}
	if hasFarewell(lower) {
		apply(IndicatorFarewell, penaltyFarewell)
	}
	if isNameContext(fieldContext) && looksGarbageName(trimmed, tokens) {
		apply(IndicatorNameGarbage, penaltyNameGarbage)
	}

	value = math.Round(clamp01(value)*100) / 100
	return Score{Value: value, Indicators: indicators}
}

// InferFieldContext guesses which field the caller's answer belongs to from
// the agent's previous question. Most specific names are checked before
// generic ones.
func InferFieldContext(lastQuestion string) string {
	q := strings.ToLower(lastQuestion)
	switch {
	case strings.Contains(q, "first name"):
		return "first_name"
	case strings.Contains(q, "last name"), strings.Contains(q, "surname"):
		return "last_name"
	case strings.Contains(q, "full name"), strings.Contains(q, "your name"), strings.Contains(q, "name"):
		return "name"
	case strings.Contains(q, "email"), strings.Contains(q, "e-mail"):
		return "email"
	case strings.Contains(q, "phone"), strings.Contains(q, "number to reach"), strings.Contains(q, "callback number"):
		return "phone"
	case strings.Contains(q, "address"), strings.Contains(q, "street"), strings.Contains(q, "zip"):
		return "address"
	case strings.Contains(q, "brand"), strings.Contains(q, "manufacturer"):
		return "brand"
	case strings.Contains(q, "equipment"), strings.Contains(q, "appliance"), strings.Contains(q, "unit"):
		return "equipment_type"
	case strings.Contains(q, "symptom"):
		return "symptoms"
	case strings.Contains(q, "urgent"), strings.Contains(q, "emergency"):
		return "urgency"
	case strings.Contains(q, "problem"), strings.Contains(q, "issue"), strings.Contains(q, "going on"), strings.Contains(q, "help you with"):
		return "issue_description"
	default:
		return "general"
	}
}

func hasArtifactMarker(lower string) bool {
	for _, m := range artifactMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isLengthOutlier(s, fieldContext string) bool {
	switch {
	case isNameContext(fieldContext):
		return len(s) > 40
	case fieldContext == "email":
		return len(s) > 64
	case fieldContext == "phone":
		return len(s) > 32
	default:
		return len(s) > 300
	}
}

func countFillers(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if fillerWords[strings.Trim(t, ".,!?")] {
			n++
		}
	}
	return n
}

// looksGibberish fires on long consonant runs or answers dominated by one-
// and two-letter fragments. Fires at most once even when both patterns match.
func looksGibberish(lower string, tokens []string) bool {
	run := 0
	for _, r := range lower {
		if r >= 'a' && r <= 'z' && !isVowel(r) {
			run++
			if run >= 5 {
				return true
			}
		} else {
			run = 0
		}
	}
	if len(tokens) >= 3 {
		short := 0
		for _, t := range tokens {
			if len(strings.Trim(t, ".,!?")) <= 2 {
				short++
			}
		}
		if short*2 > len(tokens) {
			return true
		}
	}
	return false
}

func repeatedWordRatioLow(tokens []string) bool {
	if len(tokens) < 4 {
		return false
	}
	unique := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		unique[t] = true
	}
	return float64(len(unique)) < 0.6*float64(len(tokens))
}

func hasRecognizedTLD(lower string) bool {
	for _, tld := range recognizedTLDs {
		if strings.Contains(lower, tld) {
			return true
		}
	}
	return false
}

// looksSpokenEmail detects an address read aloud ("tim at example dot com")
// that the transcription left unconverted.
func looksSpokenEmail(lower string) bool {
	if strings.Contains(lower, "@") {
		return false
	}
	return strings.Contains(lower, " at ") || strings.Contains(lower, " dot ")
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func isOpenEnded(fieldContext string) bool {
	switch fieldContext {
	case "general", "issue_description", "symptoms":
		return true
	}
	return false
}

func isShoutedText(s string) bool {
	letters := 0
	upper := 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters >= 8 && upper == letters
}

func isNumericOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != ' ' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func hasFarewell(lower string) bool {
	tokens := strings.Fields(lower)
	for _, p := range farewellPhrases {
		if strings.Contains(p, " ") {
			if strings.Contains(lower, p) {
				return true
			}
			continue
		}
		// Single-word phrases match whole tokens only, so "maybe" never
		// counts as "bye".
		for _, t := range tokens {
			if strings.Trim(t, ".,!?") == p {
				return true
			}
		}
	}
	return false
}

func isNameContext(fieldContext string) bool {
	switch fieldContext {
	case "name", "first_name", "last_name":
		return true
	}
	return false
}

// looksGarbageName fires on values that cannot plausibly be a person's name.
func looksGarbageName(s string, tokens []string) bool {
	if len(s) < 2 {
		return true
	}
	if len(tokens) == 1 {
		word := strings.Trim(strings.ToLower(tokens[0]), ".,!?")
		if nonNameWords[word] {
			return true
		}
		if len(word) <= 2 {
			return true
		}
	}
	return strings.ContainsAny(s, "@#$%^&*()_+=/\\|<>~0123456789")
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
