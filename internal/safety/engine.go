// Package safety implements the deterministic safety gate that runs before
// any triage or retrieval work. It matches the message against ordered,
// tagged pattern sets (emergency before refusal, early termination) and
// enforces the per-session escalation lock.
package safety

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Shahadat99x/healthcare-assistant-ai/patterns"
)

// Verdict actions, in priority order.
const (
	ActionAllow    = "allow"
	ActionRefuse   = "refuse"
	ActionEscalate = "escalate"
)

// Rule set categories.
const (
	CategoryEmergency = "emergency"
	CategoryRefusal   = "refusal"
)

// Safety flags surfaced in responses.
const (
	FlagRedFlag        = "red_flag_detected"
	FlagRefusal        = "refusal_applied"
	FlagEscalationLock = "emergency_lock_active"
)

// Verdict is the immutable result of evaluating one message.
type Verdict struct {
	Action  string   `json:"action"`
	Flags   []string `json:"flags"`
	Message string   `json:"message,omitempty"` // override text for escalate/refuse
}

// Escalated reports whether the verdict demands emergency handling.
func (v Verdict) Escalated() bool { return v.Action == ActionEscalate }

// Engine evaluates messages against the compiled rule sets. Evaluation is
// pure and idempotent: identical input always yields the identical verdict.
type Engine struct {
	sets            []compiledRuleSet
	escalationReply string
}

// NewEngine builds an engine from the embedded default rule pack, optionally
// merged with an override pack from disk (override sets replace embedded
// sets of the same name; new sets are added). Compilation orders emergency
// sets before refusal sets whatever the merged file order.
func NewEngine(overridePath string) (*Engine, error) {
	rf, err := ParseRuleFile(patterns.SafetyYAML())
	if err != nil {
		return nil, err
	}
	if overridePath != "" {
		override, err := LoadRuleFile(overridePath)
		if err != nil {
			return nil, err
		}
		if override != nil {
			rf = mergeRuleFiles(rf, override)
		}
	}
	sets, err := compileRuleSets(rf)
	if err != nil {
		return nil, err
	}
	e := &Engine{sets: sets}
	for _, s := range sets {
		if s.category == CategoryEmergency && e.escalationReply == "" {
			e.escalationReply = s.message
		}
	}
	return e, nil
}

// MustNewEngine builds an engine from the embedded pack and panics on error.
// The embedded pack is validated by tests, so a failure here is a build bug.
func MustNewEngine() *Engine {
	e, err := NewEngine("")
	if err != nil {
		panic(err)
	}
	return e
}

// mergeRuleFiles replaces embedded rule sets by name and appends new ones.
func mergeRuleFiles(base, override *RuleFile) *RuleFile {
	index := make(map[string]int, len(base.RuleSets))
	merged := make([]RuleSetConfig, len(base.RuleSets))
	copy(merged, base.RuleSets)
	for i, rs := range merged {
		index[rs.Name] = i
	}
	for _, rs := range override.RuleSets {
		if i, ok := index[rs.Name]; ok {
			merged[i] = rs
		} else {
			merged = append(merged, rs)
		}
	}
	return &RuleFile{RuleSets: merged}
}

// Evaluate tests the message against the rule sets in priority order.
// escalated is the session's sticky escalation flag: once a conversation has
// been escalated, every later message is forced to escalate regardless of
// content, until an explicit session reset. Evaluate never fails; no match
// is a valid allow verdict.
func (e *Engine) Evaluate(message string, escalated bool) Verdict {
	if escalated {
		return Verdict{
			Action:  ActionEscalate,
			Flags:   []string{FlagRedFlag, FlagEscalationLock},
			Message: e.escalationReply,
		}
	}

	lower := strings.ToLower(message)
	for _, rs := range e.sets {
		for _, re := range rs.patterns {
			if re.MatchString(lower) {
				action := ActionRefuse
				if rs.category == CategoryEmergency {
					action = ActionEscalate
				}
				return Verdict{
					Action:  action,
					Flags:   []string{rs.flag},
					Message: rs.message,
				}
			}
		}
	}
	return Verdict{Action: ActionAllow, Flags: []string{}}
}

// SpanAttributes returns OTel attributes describing a verdict.
func (v Verdict) SpanAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("safety.action", v.Action),
		attribute.StringSlice("safety.flags", v.Flags),
	}
}
