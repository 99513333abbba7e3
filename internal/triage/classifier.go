// Package triage extracts a symptom profile from a chat message and assigns
// an urgency level through a deterministic decision table over (symptom tag,
// severity, duration). It is invoked only for messages the safety gate
// allowed, and performs no I/O.
package triage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
	"github.com/Shahadat99x/healthcare-assistant-ai/patterns"
)

// Urgency levels. The five-level set is canonical; "routine" is what older
// documents called "gp".
const (
	UrgencyEmergency = "emergency"
	UrgencyUrgent    = "urgent"
	UrgencyRoutine   = "routine"
	UrgencySelfCare  = "self_care"
	UrgencyUnknown   = "unknown"
)

// Severity levels extracted from qualifier words.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// maxFollowUpQuestions caps the clarifying questions attached to a profile.
const maxFollowUpQuestions = 3

// Profile is the symptom/urgency extraction result for one message.
type Profile struct {
	Tags              []string `json:"tags"`
	Severity          string   `json:"severity,omitempty"`
	DurationDays      int      `json:"duration_days,omitempty"`
	TemperatureC      float64  `json:"temperature_c,omitempty"`
	Urgency           string   `json:"urgency"`
	Reason            string   `json:"reason"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	Inherited         bool     `json:"inherited,omitempty"` // tags carried over from session history
}

// HasTag reports whether the profile contains the given symptom tag.
func (p *Profile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

var (
	temperatureRe = regexp.MustCompile(`(\d{2}[.,]?\d?)`)
	durationRe    = regexp.MustCompile(`(\d+|a|one)\s*(day|week|month)`)
	followUpRe    = regexp.MustCompile(`\b(worse|worsening|better|still|same|again)\b`)
	childRe       = regexp.MustCompile(`\b(child|baby|kid)\b`)
)

// Classifier matches messages against the controlled symptom vocabulary and
// runs the urgency decision table. Stateless apart from the compiled
// vocabulary; classification is idempotent.
type Classifier struct {
	symptoms  []SymptomConfig
	severity  []SeverityConfig
	expansion map[string]string
}

// NewClassifier builds a classifier from the embedded vocabulary pack,
// optionally merged with an override file (matching tags replace, new tags
// append).
func NewClassifier(overridePath string) (*Classifier, error) {
	vf, err := ParseVocabFile(patterns.TriageYAML())
	if err != nil {
		return nil, err
	}
	if overridePath != "" {
		override, err := LoadVocabFile(overridePath)
		if err != nil {
			return nil, err
		}
		if override != nil {
			vf = mergeVocab(vf, override)
		}
	}
	if err := vf.validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		symptoms:  vf.Symptoms,
		severity:  vf.Severity,
		expansion: make(map[string]string),
	}
	for _, s := range vf.Symptoms {
		if s.Expansion != "" {
			c.expansion[s.Tag] = s.Expansion
		}
	}
	return c, nil
}

// MustNewClassifier builds a classifier from the embedded pack and panics on
// error.
func MustNewClassifier() *Classifier {
	c, err := NewClassifier("")
	if err != nil {
		panic(err)
	}
	return c
}

func mergeVocab(base, override *VocabFile) *VocabFile {
	merged := &VocabFile{Severity: base.Severity}
	if len(override.Severity) > 0 {
		merged.Severity = override.Severity
	}
	index := make(map[string]int, len(base.Symptoms))
	merged.Symptoms = make([]SymptomConfig, len(base.Symptoms))
	copy(merged.Symptoms, base.Symptoms)
	for i, s := range merged.Symptoms {
		index[s.Tag] = i
	}
	for _, s := range override.Symptoms {
		if i, ok := index[s.Tag]; ok {
			merged.Symptoms[i] = s
		} else {
			merged.Symptoms = append(merged.Symptoms, s)
		}
	}
	return merged
}

// ExpansionTerms returns deterministic extra query terms for the given tags,
// in vocabulary order. Used by retrieval query expansion.
func (c *Classifier) ExpansionTerms(tags []string) []string {
	var terms []string
	for _, s := range c.symptoms {
		if s.Expansion == "" {
			continue
		}
		for _, t := range tags {
			if t == s.Tag {
				terms = append(terms, s.Expansion)
				break
			}
		}
	}
	return terms
}

// Classify extracts the symptom profile for a message. rec may be nil (fresh
// session); when the message carries no symptom of its own but reads like a
// follow-up ("it's been worse"), the previous message's tags are inherited
// from the session so the decision table can still run.
func (c *Classifier) Classify(message string, rec *session.Record) *Profile {
	lower := strings.ToLower(message)

	p := &Profile{Tags: []string{}}
	for _, s := range c.symptoms {
		for _, kw := range s.Keywords {
			if strings.Contains(lower, kw) {
				p.Tags = append(p.Tags, s.Tag)
				break
			}
		}
	}
	for _, sv := range c.severity {
		for _, kw := range sv.Keywords {
			if strings.Contains(lower, kw) {
				p.Severity = sv.Level
				break
			}
		}
		if p.Severity != "" {
			break
		}
	}

	if m := temperatureRe.FindStringSubmatch(message); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			p.TemperatureC = v
		}
	}
	if m := durationRe.FindStringSubmatch(lower); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			v = 1 // "a week", "one day"
		}
		switch m[2] {
		case "week":
			v *= 7
		case "month":
			v *= 30
		}
		p.DurationDays = v
	}

	// Follow-up disambiguation: "it's been worse" after "I have a headache".
	if len(p.Tags) == 0 && rec != nil && len(rec.LastTags) > 0 && followUpRe.MatchString(lower) {
		p.Tags = append(p.Tags, rec.LastTags...)
		p.Inherited = true
		if strings.Contains(lower, "worse") || strings.Contains(lower, "worsening") {
			p.Severity = SeverityHigh
		}
	}

	c.assignUrgency(p, lower)
	if len(p.FollowUpQuestions) > maxFollowUpQuestions {
		p.FollowUpQuestions = p.FollowUpQuestions[:maxFollowUpQuestions]
	}
	return p
}

// assignUrgency runs the decision table. Rule order is fixed: fever,
// breathing, pain, then the generic fallback. Later rules may raise but the
// final unknown fallback only applies when nothing matched.
func (c *Classifier) assignUrgency(p *Profile, lower string) {
	if len(p.Tags) == 0 {
		p.Urgency = UrgencyUnknown
		p.Reason = "No specific symptoms detected."
		p.FollowUpQuestions = []string{
			"What are your main symptoms?",
			"How long have you felt this way?",
			"Do you have any pain or fever?",
		}
		return
	}

	isChild := childRe.MatchString(lower)
	p.Urgency = UrgencyUnknown

	if p.HasTag("fever") {
		switch {
		case p.TemperatureC > 39.0 && !isChild:
			p.Urgency = UrgencyUrgent
			p.Reason = "High fever."
		case p.TemperatureC > 38.0 && isChild:
			p.Urgency = UrgencyUrgent
			p.Reason = "Fever in child."
		case strings.Contains(lower, "stiffness") || strings.Contains(lower, "neck"):
			// Fever with stiff neck: potential meningitis.
			p.Urgency = UrgencyEmergency
			p.Reason = "Fever with stiff neck."
		case p.DurationDays > 3:
			p.Urgency = UrgencyUrgent
			p.Reason = "Persistent fever over 3 days."
		default:
			p.Urgency = UrgencySelfCare
			p.Reason = "Mild fever, likely viral."
			p.FollowUpQuestions = []string{
				"How high is the fever?",
				"How long have you had it?",
				"Do you have a stiff neck or rash?",
			}
		}
	}

	if p.HasTag("breathing") {
		if p.Severity == SeverityHigh || strings.Contains(lower, "hard") || strings.Contains(lower, "fight") {
			p.Urgency = UrgencyEmergency
			p.Reason = "Severe difficulty breathing."
		} else {
			p.Urgency = UrgencyUrgent
			p.Reason = "Breathing difficulty."
			p.FollowUpQuestions = []string{
				"Do you have chest pain?",
				"Is it harder to breathe when lying down?",
				"Do you have blue lips?",
			}
		}
	}

	if p.HasTag("pain") || p.HasTag("headache") || p.HasTag("abdominal") {
		switch {
		case p.Severity == SeverityHigh:
			p.Urgency = UrgencyUrgent
			if strings.Contains(lower, "chest") {
				p.Urgency = UrgencyEmergency
			}
			if p.HasTag("headache") && strings.Contains(lower, "sudden") {
				p.Urgency = UrgencyEmergency
			}
			p.Reason = "Severe pain reported."
		case p.DurationDays >= 7:
			p.Urgency = UrgencyRoutine
			p.Reason = "Long-standing pain."
		default:
			p.Urgency = UrgencySelfCare
			if p.Severity != SeverityLow && p.Severity != "" {
				p.Urgency = UrgencyUrgent
			}
			p.Reason = "Moderate pain."
		}
		if p.Urgency == UrgencyUrgent || p.Urgency == UrgencySelfCare {
			p.FollowUpQuestions = []string{
				"Where exactly is the pain?",
				"On a scale of 1-10, how bad is it?",
				"Did it start suddenly?",
			}
		}
	}

	if p.Urgency == UrgencyUnknown {
		switch {
		case p.Severity == SeverityHigh:
			p.Urgency = UrgencyUrgent
			p.Reason = "Severe symptoms reported."
		case p.DurationDays >= 7:
			p.Urgency = UrgencyRoutine
			p.Reason = "Long-standing symptoms."
		default:
			p.Urgency = UrgencySelfCare
			p.Reason = "Mild symptoms detected."
			p.FollowUpQuestions = []string{
				"Has this happened before?",
				"Are you taking any medication?",
				"Any other symptoms?",
			}
		}
	}
}
