// Package compose merges the safety verdict, triage profile, and retrieval
// outcome into one ChatResponse honoring the strict priority order:
// escalate > refuse > clarification > grounded answer > generic answer.
// Composition is pure: no external calls, fully deterministic given its
// inputs.
package compose

import (
	"fmt"
	"strings"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

// Disclaimer is appended to every reply except emergency escalations.
const Disclaimer = "\n\nI'm not a doctor. If symptoms worsen or you have serious concerns, seek medical care."

// Response kinds, surfaced for evaluation tooling.
const (
	KindEmergency     = "emergency_escalation"
	KindRefusal       = "safety_refusal"
	KindClarification = "clarification"
	KindAdvice        = "medical_advice"
	KindChitchat      = "chitchat"
	KindMeta          = "meta"
	KindLogistics     = "logistics"
)

// ChatResponse is the reply surfaced to the client. Invariant: when the
// safety verdict escalated, urgency is emergency and citations and
// recommendations carry only emergency-resource content.
type ChatResponse struct {
	AssistantMessage  string               `json:"assistant_message"`
	Urgency           string               `json:"urgency"`
	SafetyFlags       []string             `json:"safety_flags"`
	Citations         []retrieval.Citation `json:"citations"`
	Recommendations   []string             `json:"recommendations"`
	FollowUpQuestions []string             `json:"follow_up_questions,omitempty"`
	LocalResources    []resources.Facility `json:"local_resources,omitempty"`
	Intent            string               `json:"intent,omitempty"`
	Grounded          bool                 `json:"grounded"`
	ResponseKind      string               `json:"response_kind"`
}

// Input carries everything the composer may merge. Lower-priority fields are
// ignored once a higher-priority stage fired.
type Input struct {
	Verdict            safety.Verdict
	Profile            *triage.Profile
	Retrieval          *retrieval.Result
	Generated          string
	Intent             string
	EmergencyResources []resources.Facility
}

// Composer builds chat responses.
type Composer struct{}

// NewComposer creates a Composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose resolves the priority order and returns the final response. It
// never lets a lower stage contradict the safety verdict: an escalated
// verdict produces emergency content regardless of what retrieval or
// generation returned.
func (c *Composer) Compose(in Input) *ChatResponse {
	if in.Verdict.Action == safety.ActionEscalate {
		return c.emergency(in)
	}
	if in.Verdict.Action == safety.ActionRefuse {
		return c.refusal(in)
	}
	if in.Profile == nil || in.Profile.Urgency == triage.UrgencyUnknown {
		return c.clarification(in)
	}
	return c.answer(in)
}

// emergency builds the escalation reply. Citations and recommendations are
// replaced by emergency-resource content regardless of retrieval outcome.
func (c *Composer) emergency(in Input) *ChatResponse {
	msg := in.Verdict.Message
	resp := &ChatResponse{
		AssistantMessage: msg,
		Urgency:          triage.UrgencyEmergency,
		SafetyFlags:      in.Verdict.Flags,
		Citations:        []retrieval.Citation{},
		Recommendations:  facilityLines(in.EmergencyResources),
		LocalResources:   in.EmergencyResources,
		Intent:           in.Intent,
		ResponseKind:     KindEmergency,
	}
	return resp
}

func (c *Composer) refusal(in Input) *ChatResponse {
	return &ChatResponse{
		AssistantMessage: in.Verdict.Message + Disclaimer,
		Urgency:          triage.UrgencySelfCare,
		SafetyFlags:      in.Verdict.Flags,
		Citations:        []retrieval.Citation{},
		Recommendations:  []string{},
		Intent:           in.Intent,
		ResponseKind:     KindRefusal,
	}
}

// clarification is the unknown-urgency reply: a clarifying question with no
// citations. Policy, not failure.
func (c *Composer) clarification(in Input) *ChatResponse {
	var b strings.Builder
	b.WriteString("I'm not sure I understand your symptoms clearly enough to provide specific advice. Could you please clarify?")
	var questions []string
	if in.Profile != nil {
		questions = in.Profile.FollowUpQuestions
	}
	if len(questions) > 0 {
		b.WriteString("\n\nQuick questions:")
		for _, q := range questions {
			b.WriteString("\n- ")
			b.WriteString(q)
		}
	}
	b.WriteString(Disclaimer)
	return &ChatResponse{
		AssistantMessage:  b.String(),
		Urgency:           triage.UrgencyUnknown,
		SafetyFlags:       in.Verdict.Flags,
		Citations:         []retrieval.Citation{},
		Recommendations:   []string{},
		FollowUpQuestions: questions,
		Intent:            in.Intent,
		ResponseKind:      KindClarification,
	}
}

// answer builds the generated reply. Citations are attached only when the
// retrieval result is grounded; recommendations only for urgent or emergency
// urgency, and only from the curated directory.
func (c *Composer) answer(in Input) *ChatResponse {
	resp := &ChatResponse{
		AssistantMessage: in.Generated + Disclaimer,
		Urgency:          in.Profile.Urgency,
		SafetyFlags:      in.Verdict.Flags,
		Citations:        []retrieval.Citation{},
		Recommendations:  []string{},
		Intent:           in.Intent,
		ResponseKind:     KindAdvice,
	}
	if in.Profile != nil {
		resp.FollowUpQuestions = in.Profile.FollowUpQuestions
	}
	if in.Retrieval != nil && in.Retrieval.Grounded() {
		resp.Citations = in.Retrieval.Citations
		resp.Grounded = true
	}
	if in.Profile.Urgency == triage.UrgencyUrgent || in.Profile.Urgency == triage.UrgencyEmergency {
		resp.Recommendations = facilityLines(in.EmergencyResources)
		resp.LocalResources = in.EmergencyResources
	}
	return resp
}

// Chitchat is the canned greeting reply.
func (c *Composer) Chitchat(intentLabel string) *ChatResponse {
	return &ChatResponse{
		AssistantMessage: "Hello! I am your AI healthcare assistant. How can I help you today?",
		Urgency:          triage.UrgencySelfCare,
		SafetyFlags:      []string{},
		Citations:        []retrieval.Citation{},
		Recommendations:  []string{},
		Intent:           intentLabel,
		ResponseKind:     KindChitchat,
	}
}

// Meta is the canned about-the-assistant reply.
func (c *Composer) Meta(intentLabel string) *ChatResponse {
	return &ChatResponse{
		AssistantMessage: "I am an experimental AI healthcare assistant designed to provide safe triage advice based on medical guidelines. " +
			"I am NOT a doctor. My advice is for informational purposes only. " +
			"I prioritize safety and will refer you to emergency care if red-flag symptoms are detected.",
		Urgency:         triage.UrgencySelfCare,
		SafetyFlags:     []string{},
		Citations:       []retrieval.Citation{},
		Recommendations: []string{},
		Intent:          intentLabel,
		ResponseKind:    KindMeta,
	}
}

// Logistics builds the facility-lookup reply from curated records.
func (c *Composer) Logistics(intentLabel string, found []resources.Facility, sector int) *ChatResponse {
	var msg string
	switch {
	case len(found) == 0:
		msg = "I currently don't have verified information for that specific location in my local database. " +
			"Please check official maps or call 112 if this is an emergency."
	case sector > 0:
		msg = fmt.Sprintf("Here are some medical resources in Sector %d. For emergencies, call 112.", sector)
	default:
		msg = "For medical emergencies, please call 112 immediately. Here are some verified local resources:"
	}
	return &ChatResponse{
		AssistantMessage: msg,
		Urgency:          triage.UrgencySelfCare,
		SafetyFlags:      []string{},
		Citations:        []retrieval.Citation{},
		Recommendations:  facilityLines(found),
		LocalResources:   found,
		Intent:           intentLabel,
		ResponseKind:     KindLogistics,
	}
}

func facilityLines(fs []resources.Facility) []string {
	lines := make([]string, 0, len(fs))
	for _, f := range fs {
		line := f.Name
		if f.Address != "" {
			line += ", " + f.Address
		}
		if f.Phone != "" {
			line += " (" + f.Phone + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
