// Package intent routes messages before the medical pipeline runs: greetings
// and questions about the assistant get canned replies, facility lookups go
// to the resource directory, and everything else is treated as a symptom
// description. Symptom keywords override chitchat ("hi, I have a fever" is
// medical).
package intent

import (
	"regexp"
	"strings"
)

// Intent labels.
const (
	Chitchat  = "chitchat"
	Meta      = "meta"
	Logistics = "logistics"
	Medical   = "medical_symptoms"
)

var chitchatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|greetings|good morning|good afternoon|good evening)\b`),
	regexp.MustCompile(`^(thanks|thank you|thx)\b`),
	regexp.MustCompile(`^how are you`),
	regexp.MustCompile(`^nice to meet you`),
	regexp.MustCompile(`^just checking in`),
}

var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what can you do`),
	regexp.MustCompile(`how do you work`),
	regexp.MustCompile(`are you a doctor`),
	regexp.MustCompile(`who created you`),
	regexp.MustCompile(`what is your purpose`),
	regexp.MustCompile(`who are you`),
	regexp.MustCompile(`\bsources\b`),
	regexp.MustCompile(`\bprivacy\b`),
	regexp.MustCompile(`\bdata\b`),
}

var logisticsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bcall 112\b`),
	regexp.MustCompile(`\bemergency number\b`),
	regexp.MustCompile(`\bhospital\b`),
	regexp.MustCompile(`\bclinic\b`),
	regexp.MustCompile(`\bpharmacy\b`),
	regexp.MustCompile(`\bdoctor near me\b`),
	regexp.MustCompile(`\baddress\b`),
	regexp.MustCompile(`\blocation\b`),
}

// symptomKeywords force the medical intent even when a message starts like
// chitchat.
var symptomKeywords = []string{
	"fever", "cough", "pain", "headache", "vomit", "diarrhea",
	"chest pain", "breath", "stroke", "bleed", "faint", "seizure",
	"rash", "swollen", "dizzy", "nause", "ache", "hurt", "injury",
	"sick", "ill", "temperature", "burn", "cut", "wound",
}

// Classify returns the intent label for a message. Deterministic; unmatched
// messages default to the medical intent so the safety gate always sees them.
func Classify(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, kw := range symptomKeywords {
		if strings.Contains(lower, kw) {
			return Medical
		}
	}
	if matchesAny(lower, logisticsPatterns) {
		return Logistics
	}
	if matchesAny(lower, metaPatterns) {
		return Meta
	}
	if matchesAny(lower, chitchatPatterns) {
		return Chitchat
	}
	return Medical
}

func matchesAny(text string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
