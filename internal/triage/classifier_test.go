package triage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
)

func TestClassifyDecisionTable(t *testing.T) {
	c := MustNewClassifier()

	tests := []struct {
		name        string
		message     string
		wantUrgency string
		wantTags    []string
	}{
		{
			name:        "high fever in adult",
			message:     "I have a fever of 39.5 since this morning",
			wantUrgency: UrgencyUrgent,
			wantTags:    []string{"fever"},
		},
		{
			name:        "moderate fever in adult",
			message:     "I have a fever of 38.5",
			wantUrgency: UrgencySelfCare,
			wantTags:    []string{"fever"},
		},
		{
			name:        "moderate fever in child",
			message:     "my child has a temperature of 38.5",
			wantUrgency: UrgencyUrgent,
			wantTags:    []string{"fever"},
		},
		{
			name:        "fever with stiff neck",
			message:     "fever and neck stiffness since last night",
			wantUrgency: UrgencyEmergency,
			wantTags:    []string{"fever"},
		},
		{
			name:        "persistent fever",
			message:     "I've had a fever for 4 days now",
			wantUrgency: UrgencyUrgent,
			wantTags:    []string{"fever"},
		},
		{
			name:        "mild fever",
			message:     "slight fever since yesterday evening",
			wantUrgency: UrgencySelfCare,
			wantTags:    []string{"fever"},
		},
		{
			name:        "severe breathing trouble",
			message:     "severe shortness of air, fighting for breath",
			wantUrgency: UrgencyEmergency,
			wantTags:    []string{"breathing"},
		},
		{
			name:        "mild breathing trouble",
			message:     "a bit short of air when climbing stairs",
			wantUrgency: UrgencyUrgent,
			wantTags:    []string{"breathing"},
		},
		{
			name:        "severe chest pain",
			message:     "severe pain in my chest",
			wantUrgency: UrgencyEmergency,
			wantTags:    []string{"pain"},
		},
		{
			name:        "sudden severe headache",
			message:     "sudden severe headache, the worst of my life",
			wantUrgency: UrgencyEmergency,
			wantTags:    []string{"pain", "headache"},
		},
		{
			name:        "week-long headache is routine",
			message:     "I have had a headache for a week",
			wantUrgency: UrgencyRoutine,
			wantTags:    []string{"pain", "headache"},
		},
		{
			name:        "chronic pain in weeks",
			message:     "my knee has been sore for 2 weeks",
			wantUrgency: UrgencyRoutine,
			wantTags:    []string{"pain"},
		},
		{
			name:        "mild recent ache",
			message:     "mild ache in my shoulder since yesterday",
			wantUrgency: UrgencySelfCare,
			wantTags:    []string{"pain"},
		},
		{
			name:        "severe rash",
			message:     "severe rash all over",
			wantUrgency: UrgencyUrgent,
			wantTags:    []string{"rash"},
		},
		{
			name:        "long-standing rash",
			message:     "itchy skin for 3 weeks",
			wantUrgency: UrgencyRoutine,
			wantTags:    []string{"rash"},
		},
		{
			name:        "mild nausea",
			message:     "slight nausea after lunch",
			wantUrgency: UrgencySelfCare,
			wantTags:    []string{"vomit"},
		},
		{
			name:        "no symptoms",
			message:     "I don't feel like myself lately",
			wantUrgency: UrgencyUnknown,
			wantTags:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(tt.message, nil)
			assert.Equal(t, tt.wantUrgency, p.Urgency, "reason: %s", p.Reason)
			assert.Equal(t, tt.wantTags, p.Tags)
			assert.NotEmpty(t, p.Reason)

			// Same message, same profile
			assert.Equal(t, p, c.Classify(tt.message, nil))
		})
	}
}

func TestClassifyExtraction(t *testing.T) {
	c := MustNewClassifier()

	p := c.Classify("fever of 38,9 for 2 days", nil)
	assert.InDelta(t, 38.9, p.TemperatureC, 0.001)
	assert.Equal(t, 2, p.DurationDays)

	p = c.Classify("headache for a week", nil)
	assert.Equal(t, 7, p.DurationDays)

	p = c.Classify("stomach ache for one month", nil)
	assert.Equal(t, 30, p.DurationDays)

	p = c.Classify("severe belly pain", nil)
	assert.Equal(t, SeverityHigh, p.Severity)

	p = c.Classify("mild headache", nil)
	assert.Equal(t, SeverityLow, p.Severity)
}

func TestClassifyUnknownAsksFollowUps(t *testing.T) {
	c := MustNewClassifier()

	p := c.Classify("something is off", nil)
	require.Equal(t, UrgencyUnknown, p.Urgency)
	assert.NotEmpty(t, p.FollowUpQuestions)
	assert.LessOrEqual(t, len(p.FollowUpQuestions), maxFollowUpQuestions)
}

func TestClassifyFollowUpInheritsTags(t *testing.T) {
	c := MustNewClassifier()

	rec := &session.Record{LastTags: []string{"headache"}}
	p := c.Classify("it has been worse since this morning", rec)

	require.Equal(t, []string{"headache"}, p.Tags)
	assert.True(t, p.Inherited)
	assert.Equal(t, SeverityHigh, p.Severity)
	assert.Equal(t, UrgencyUrgent, p.Urgency)

	// Without session context the same message stays unknown
	p = c.Classify("it has been worse since this morning", nil)
	assert.Equal(t, UrgencyUnknown, p.Urgency)
}

func TestExpansionTerms(t *testing.T) {
	c := MustNewClassifier()

	terms := c.ExpansionTerms([]string{"fever", "cough"})
	require.Len(t, terms, 2)
	assert.Contains(t, terms[0], "temperature")
	assert.Contains(t, terms[1], "shortness of breath")

	assert.Empty(t, c.ExpansionTerms([]string{"rash"}))
	assert.Empty(t, c.ExpansionTerms(nil))
}

func TestNewClassifierOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	override := `
symptoms:
  - tag: earache
    keywords: [earache, ear pain]
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	c, err := NewClassifier(path)
	require.NoError(t, err)

	p := c.Classify("I have an earache", nil)
	assert.True(t, p.HasTag("earache"))

	// Embedded tags survive the merge
	p = c.Classify("fever since yesterday", nil)
	assert.Equal(t, []string{"fever"}, p.Tags)
}
