package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

func groundedResult() *retrieval.Result {
	return &retrieval.Result{
		Status: retrieval.StatusGrounded,
		Citations: []retrieval.Citation{
			{ID: "c1", Title: "Fever in adults", Org: "NHS", Snippet: "rest and fluids", FullText: "rest and fluids and monitoring"},
		},
	}
}

func TestComposeEscalationWins(t *testing.T) {
	c := NewComposer()

	// Even with a grounded result and generated text in hand, escalation
	// replaces everything.
	resp := c.Compose(Input{
		Verdict: safety.Verdict{
			Action:  safety.ActionEscalate,
			Flags:   []string{safety.FlagRedFlag},
			Message: "EMERGENCY ALERT: call 112 now.",
		},
		Profile:   &triage.Profile{Urgency: triage.UrgencySelfCare},
		Retrieval: groundedResult(),
		Generated: "model text that must not appear",
		EmergencyResources: []resources.Facility{
			{Name: "City General Hospital", Address: "Main Road", Phone: "051-111"},
		},
	})

	assert.Equal(t, triage.UrgencyEmergency, resp.Urgency)
	assert.Equal(t, KindEmergency, resp.ResponseKind)
	assert.Contains(t, resp.AssistantMessage, "112")
	assert.NotContains(t, resp.AssistantMessage, "model text")
	assert.NotContains(t, resp.AssistantMessage, Disclaimer, "escalation carries no softening disclaimer")
	assert.Empty(t, resp.Citations)
	assert.False(t, resp.Grounded)
	require.Len(t, resp.Recommendations, 1)
	assert.Contains(t, resp.Recommendations[0], "City General Hospital")
}

func TestComposeRefusal(t *testing.T) {
	c := NewComposer()

	resp := c.Compose(Input{
		Verdict: safety.Verdict{
			Action:  safety.ActionRefuse,
			Flags:   []string{safety.FlagRefusal},
			Message: "I cannot provide dosage instructions.",
		},
		Generated: "ignored",
	})

	assert.Equal(t, KindRefusal, resp.ResponseKind)
	assert.Equal(t, triage.UrgencySelfCare, resp.Urgency)
	assert.True(t, strings.HasPrefix(resp.AssistantMessage, "I cannot provide dosage instructions."))
	assert.True(t, strings.HasSuffix(resp.AssistantMessage, Disclaimer))
	assert.Empty(t, resp.Citations)
	assert.Empty(t, resp.Recommendations)
}

func TestComposeClarification(t *testing.T) {
	c := NewComposer()

	profile := &triage.Profile{
		Urgency:           triage.UrgencyUnknown,
		FollowUpQuestions: []string{"What are your main symptoms?", "How long have you felt this way?"},
	}
	resp := c.Compose(Input{
		Verdict: safety.Verdict{Action: safety.ActionAllow, Flags: []string{}},
		Profile: profile,
	})

	assert.Equal(t, KindClarification, resp.ResponseKind)
	assert.Equal(t, triage.UrgencyUnknown, resp.Urgency)
	assert.Contains(t, resp.AssistantMessage, "clarify")
	assert.Contains(t, resp.AssistantMessage, "What are your main symptoms?")
	assert.True(t, strings.HasSuffix(resp.AssistantMessage, Disclaimer))
	assert.Equal(t, profile.FollowUpQuestions, resp.FollowUpQuestions)
	assert.Empty(t, resp.Citations)
}

func TestComposeGroundedAnswer(t *testing.T) {
	c := NewComposer()

	resp := c.Compose(Input{
		Verdict:   safety.Verdict{Action: safety.ActionAllow, Flags: []string{}},
		Profile:   &triage.Profile{Urgency: triage.UrgencySelfCare, Tags: []string{"fever"}},
		Retrieval: groundedResult(),
		Generated: "Rest, drink fluids, and monitor your temperature.",
	})

	assert.Equal(t, KindAdvice, resp.ResponseKind)
	assert.True(t, resp.Grounded)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "c1", resp.Citations[0].ID)
	assert.True(t, strings.HasPrefix(resp.AssistantMessage, "Rest, drink fluids"))
	assert.True(t, strings.HasSuffix(resp.AssistantMessage, Disclaimer))
	assert.Empty(t, resp.Recommendations, "self_care answers carry no facility push")
}

func TestComposeUngroundedAnswerHasNoCitations(t *testing.T) {
	c := NewComposer()

	for _, retr := range []*retrieval.Result{
		retrieval.NotGroundedResult(),
		retrieval.SkippedResult(),
		nil,
	} {
		resp := c.Compose(Input{
			Verdict:   safety.Verdict{Action: safety.ActionAllow, Flags: []string{}},
			Profile:   &triage.Profile{Urgency: triage.UrgencySelfCare, Tags: []string{"fever"}},
			Retrieval: retr,
			Generated: "General advice.",
		})
		assert.False(t, resp.Grounded)
		assert.Empty(t, resp.Citations, "citations require a grounded result")
	}
}

func TestComposeUrgentAnswerAttachesFacilities(t *testing.T) {
	c := NewComposer()

	resp := c.Compose(Input{
		Verdict:   safety.Verdict{Action: safety.ActionAllow, Flags: []string{}},
		Profile:   &triage.Profile{Urgency: triage.UrgencyUrgent, Tags: []string{"fever"}},
		Retrieval: groundedResult(),
		Generated: "See a doctor within 24 hours.",
		EmergencyResources: []resources.Facility{
			{Name: "City General Hospital", Address: "Main Road"},
		},
	})

	assert.Equal(t, triage.UrgencyUrgent, resp.Urgency)
	require.Len(t, resp.Recommendations, 1)
	assert.Contains(t, resp.Recommendations[0], "City General Hospital")
}

func TestCannedReplies(t *testing.T) {
	c := NewComposer()

	chit := c.Chitchat("chitchat")
	assert.Equal(t, KindChitchat, chit.ResponseKind)
	assert.Contains(t, chit.AssistantMessage, "healthcare assistant")

	meta := c.Meta("meta")
	assert.Equal(t, KindMeta, meta.ResponseKind)
	assert.Contains(t, meta.AssistantMessage, "NOT a doctor")

	found := []resources.Facility{{Name: "Sector Clinic", Address: "G-9"}}
	logi := c.Logistics("logistics", found, 9)
	assert.Equal(t, KindLogistics, logi.ResponseKind)
	assert.Contains(t, logi.AssistantMessage, "Sector 9")
	require.Len(t, logi.Recommendations, 1)

	empty := c.Logistics("logistics", nil, 0)
	assert.Contains(t, empty.AssistantMessage, "don't have verified information")
	assert.Empty(t, empty.Recommendations)
}

func TestBuildPrompt(t *testing.T) {
	c := NewComposer()

	history := []session.Turn{
		{Role: "user", Content: "I have a fever"},
		{Role: "assistant", Content: "How high is it?"},
	}

	msgs := c.BuildPrompt("it is 38.5 now", history, groundedResult(), triage.UrgencySelfCare)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "TRUSTED SOURCES")

	joined := ""
	for _, m := range msgs {
		joined += m.Role + ": " + m.Content + "\n"
	}
	assert.Contains(t, joined, "Source [1] (NHS)")
	assert.Contains(t, joined, "rest and fluids and monitoring", "prompt context uses the full text, not the display snippet")
	assert.Contains(t, joined, "I have a fever")
	assert.Equal(t, "user", msgs[len(msgs)-1].Role)
	assert.Equal(t, "it is 38.5 now", msgs[len(msgs)-1].Content)

	// Ungrounded prompt switches instructions and carries no sources
	msgs = c.BuildPrompt("it is 38.5 now", nil, retrieval.NotGroundedResult(), triage.UrgencySelfCare)
	joined = ""
	for _, m := range msgs {
		joined += m.Content + "\n"
	}
	assert.NotContains(t, joined, "Source [1]")
	assert.Contains(t, joined, "No relevant local medical guidelines were found")
}
