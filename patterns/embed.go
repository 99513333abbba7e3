// Package patterns provides the embedded default rule packs.
// safety.yaml holds the ordered escalation/refusal pattern sets; triage.yaml
// holds the symptom vocabulary and severity qualifiers. Both use a YAML
// format evaluated in fixed priority order at runtime.
package patterns

import _ "embed"

//go:embed safety.yaml
var safetyYAML []byte

//go:embed triage.yaml
var triageYAML []byte

// SafetyYAML returns the embedded default safety rule sets.
func SafetyYAML() []byte { return safetyYAML }

// TriageYAML returns the embedded default triage vocabulary.
func TriageYAML() []byte { return triageYAML }
