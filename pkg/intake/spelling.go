package intake

import (
	"fmt"
	"strings"
)

// spokenTokenMap converts words callers use when reading an address or
// number aloud into their literal characters.
var spokenTokenMap = map[string]string{
	"at":         "@",
	"dot":        ".",
	"period":     ".",
	"dash":       "-",
	"hyphen":     "-",
	"minus":      "-",
	"underscore": "_",
}

var spokenDigitMap = map[string]string{
	"zero": "0", "oh": "0", "one": "1", "two": "2", "three": "3",
	"four": "4", "five": "5", "six": "6", "seven": "7", "eight": "8",
	"nine": "9",
}

// parseSpelledEmail turns a possibly spelled-out utterance into a compact
// address: "t i m at example dot com" becomes "tim@example.com". Single
// letter sequences collapse naturally because all whitespace is stripped
// after token substitution.
func parseSpelledEmail(spoken string) string {
	tokens := strings.Fields(strings.ToLower(spoken))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.Trim(t, ",")
		if t == "" {
			continue
		}
		if lit, ok := spokenTokenMap[t]; ok {
			out = append(out, lit)
			continue
		}
		out = append(out, t)
	}
	addr := strings.Join(out, "")
	addr = strings.TrimSuffix(addr, ".")

	// Callers often say just "gmail" for the domain.
	if strings.HasSuffix(addr, "@gmail") {
		addr += ".com"
	}
	return addr
}

// parseSpelledPhone extracts digits from a spoken utterance, mapping digit
// words, and normalizes to grouped formatting. ok is false when the digit
// count is not a 10-digit domestic number or 11 digits with a leading
// country code.
func parseSpelledPhone(spoken string) (formatted string, ok bool) {
	var digits strings.Builder
	for _, t := range strings.Fields(strings.ToLower(spoken)) {
		t = strings.Trim(t, ".,")
		if d, found := spokenDigitMap[t]; found {
			digits.WriteString(d)
			continue
		}
		for _, r := range t {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
	}

	d := digits.String()
	switch {
	case len(d) == 10:
		return fmt.Sprintf("%s-%s-%s", d[0:3], d[3:6], d[6:10]), true
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 %s-%s-%s", d[1:4], d[4:7], d[7:11]), true
	default:
		return d, false
	}
}

// nonsensePrefixes mark transcription garbage that shows up when the STT
// service hallucinates syllables from line noise.
var nonsensePrefixes = []string{"zz", "xx", "qq", "kk", "jj", "vv"}

var interiorFillers = map[string]bool{
	"um": true, "uh": true, "er": true, "hmm": true, "mhm": true,
}

// looksGarbageSpokenName rejects spelled-name responses that cannot be a
// real name: very short single words, nonsense-syllable prefixes, or filler
// tokens embedded in the middle.
func looksGarbageSpokenName(spoken string) bool {
	trimmed := strings.TrimSpace(spoken)
	tokens := strings.Fields(strings.ToLower(trimmed))
	if len(tokens) == 0 {
		return true
	}
	if len(tokens) == 1 && len(tokens[0]) <= 3 {
		return true
	}
	for _, p := range nonsensePrefixes {
		if strings.HasPrefix(strings.ToLower(trimmed), p) {
			return true
		}
	}
	for _, t := range tokens {
		if interiorFillers[strings.Trim(t, ".,")] {
			return true
		}
	}
	return false
}

// collapseSpelledName joins single-letter sequences ("j o h n" -> "john")
// while leaving whole words intact.
func collapseSpelledName(spoken string) string {
	tokens := strings.Fields(spoken)
	var out []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			out = append(out, run.String())
			run.Reset()
		}
	}
	for _, t := range tokens {
		t = strings.Trim(t, ".,")
		if len(t) == 1 {
			run.WriteString(strings.ToLower(t))
			continue
		}
		flush()
		out = append(out, t)
	}
	flush()
	return titleWords(strings.Join(out, " "))
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
